package query_test

import (
	"testing"

	"github.com/arthur-debert/nanotree/nanotree/query"
)

func TestCompareValues(t *testing.T) {
	testCases := []struct {
		a, b interface{}
		want int
	}{
		{nil, nil, 0},
		{nil, int64(0), -1},
		{nil, "", -1},
		{int64(1), nil, 1},
		{int64(1), int64(2), -1},
		{int64(2), float64(1.5), 1},
		{float64(2), int64(2), 0},
		{int(3), int64(3), 0},
		{true, int64(1), 0},
		{false, true, -1},
		{int64(999), "0", -1},
		{"a", "b", -1},
		{"b", "a", 1},
		{"B", "a", -1},
		{[]byte("x"), "x", 0},
	}

	for _, tc := range testCases {
		if got := query.CompareValues(tc.a, tc.b); got != tc.want {
			t.Errorf("CompareValues(%#v, %#v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCompareTuple(t *testing.T) {
	testCases := []struct {
		a, b []interface{}
		want int
	}{
		{[]interface{}{"a", int64(1)}, []interface{}{"a", int64(1)}, 0},
		{[]interface{}{"a", int64(1)}, []interface{}{"a", int64(2)}, -1},
		{[]interface{}{"b", int64(1)}, []interface{}{"a", int64(9)}, 1},
		{[]interface{}{"a", nil}, []interface{}{"a", int64(0)}, -1},
		{[]interface{}{"a"}, []interface{}{"a", nil}, -1},
		{nil, nil, 0},
	}

	for _, tc := range testCases {
		if got := query.CompareTuple(tc.a, tc.b); got != tc.want {
			t.Errorf("CompareTuple(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
