package types_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanotree/types"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		input string
		want  types.Position
	}{
		{"", types.PositionDefault},
		{"left", types.Left},
		{" Last_Sibling ", types.LastSibling},
		{"SORTED-CHILD", types.SortedChild},
		{"sideways", types.Position("sideways")},
	}
	for _, tt := range tests {
		if got := types.ParsePosition(tt.input); got != tt.want {
			t.Errorf("ParsePosition(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	if types.PositionDefault.String() != "default" {
		t.Errorf("unexpected default name %q", types.PositionDefault.String())
	}
	for _, p := range types.SiblingPositions {
		if p.IsChild() {
			t.Errorf("%s should not be a child position", p)
		}
	}
	if !types.SortedChild.IsChild() || !types.SortedChild.IsSorted() || types.FirstChild.IsSorted() {
		t.Error("unexpected child position predicates")
	}
}

func TestOverflowError(t *testing.T) {
	err := fmt.Errorf("add root: %w", &types.OverflowError{Path: "ZZ", Ordinal: 1296, Max: 1295})
	if !errors.Is(err, types.ErrPathOverflow) {
		t.Errorf("expected overflow to match ErrPathOverflow")
	}
	var overflow *types.OverflowError
	if !errors.As(err, &overflow) || overflow.Ordinal != 1296 {
		t.Errorf("expected OverflowError, got %v", err)
	}
	if !strings.Contains(err.Error(), `from "ZZ": ordinal 1296 exceeds 1295`) {
		t.Errorf("unexpected message %q", err)
	}
	if errors.Is(err, types.ErrCycle) {
		t.Errorf("overflow should not match other kinds")
	}
}

func TestLoadOptions(t *testing.T) {
	opts, err := types.LoadOptions(strings.NewReader("table: categories\nstep_length: 2\norder_by: [title, rank]\n"))
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	want := types.DefaultOptions()
	want.Table = "categories"
	want.StepLength = 2
	want.OrderBy = []string{"title", "rank"}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	if !opts.Sorted() {
		t.Error("expected sorted options")
	}

	empty, err := types.LoadOptions(strings.NewReader(""))
	if err != nil {
		t.Fatalf("failed to load empty options: %v", err)
	}
	if diff := cmp.Diff(types.DefaultOptions(), empty); diff != "" {
		t.Errorf("empty file should give defaults (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"step_lenght: 2\n", "step_length: many\n", "[not, a, map]\n"} {
		if _, err := types.LoadOptions(strings.NewReader(bad)); !errors.Is(err, types.ErrInvalidConfig) {
			t.Errorf("%q: expected ErrInvalidConfig, got %v", bad, err)
		}
	}
}

func TestRecord(t *testing.T) {
	rec := types.NewRecord(map[string]interface{}{"title": "a", "rank": 2})
	rec.ID, rec.Path = "x", "0001"

	clone := rec.Clone()
	clone.Set("title", "b")
	clone.Path = "0002"
	if title, _ := rec.Get("title"); title != "a" || rec.Path != "0001" {
		t.Errorf("clone shares state with the original: %+v", rec)
	}

	if diff := cmp.Diff([]interface{}{2, nil, "a"}, rec.OrderTuple([]string{"rank", "missing", "title"})); diff != "" {
		t.Errorf("order tuple mismatch (-want +got):\n%s", diff)
	}

	var nilRec *types.Record
	if nilRec.Clone() != nil {
		t.Error("expected nil clone of nil record")
	}
	if !types.NewRecord(nil).IsRoot() {
		t.Error("expected new record to be a root")
	}
}
