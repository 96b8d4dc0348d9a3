package query_test

import (
	"strings"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanotree/nanotree/mpath"
	"github.com/arthur-debert/nanotree/nanotree/query"
	"github.com/arthur-debert/nanotree/types"
)

func newPlanner(t *testing.T, orderBy ...string) *query.Planner {
	t.Helper()
	opts := types.DefaultOptions()
	opts.StepLength = 3
	opts.OrderBy = orderBy
	codec, err := mpath.FromOptions(opts)
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}
	return query.NewPlanner(codec, opts)
}

// rows builds records from paths, deriving depth from length.
func rows(paths ...string) []*types.Record {
	out := make([]*types.Record, len(paths))
	for i, p := range paths {
		out[i] = &types.Record{ID: p, Path: p, Depth: len(p) / 3}
	}
	return out
}

func pathsOf(records []*types.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Path
	}
	return out
}

var tree = rows(
	"001", "001001", "001001001", "001002", "001003",
	"002", "002001",
	"003",
)

func TestPlannerQueries(t *testing.T) {
	p := newPlanner(t)

	testCases := []struct {
		name string
		q    query.Query
		want []string
	}{
		{"roots", p.Roots(), []string{"001", "002", "003"}},
		{"children", p.Children("001"), []string{"001001", "001002", "001003"}},
		{"children of leaf", p.Children("003"), []string{}},
		{"siblings", p.Siblings("001002"), []string{"001001", "001002", "001003"}},
		{"root siblings", p.Siblings("002"), []string{"001", "002", "003"}},
		{"first in level", p.FirstInLevel("001"), []string{"001001"}},
		{"last in level", p.LastInLevel("001"), []string{"001003"}},
		{"last root", p.LastInLevel(""), []string{"003"}},
		{"next sibling", p.NextSibling("001001"), []string{"001002"}},
		{"next of last", p.NextSibling("001003"), []string{}},
		{"prev sibling", p.PrevSibling("001003"), []string{"001002"}},
		{"prev of first", p.PrevSibling("001"), []string{}},
		{"ancestors", p.Ancestors("001001001"), []string{"001", "001001"}},
		{"ancestors of root", p.Ancestors("002"), []string{}},
		{"descendants", p.Descendants("001"), []string{"001001", "001001001", "001002", "001003"}},
		{"subtree", p.Subtree("002"), []string{"002", "002001"}},
		{"shift set", p.ShiftSet("001", "001002"), []string{"001003", "001002"}},
		{"shift set roots", p.ShiftSet("", "002"), []string{"003", "002"}},
		{"between", p.Between("001", "001001", "001003"), []string{"001002"}},
		{"by path", p.ByPath("002001"), []string{"002001"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := pathsOf(tc.q.Run(tree))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", tc.q, diff)
			}
		})
	}
}

func TestRunIsRepeatable(t *testing.T) {
	p := newPlanner(t)
	q := p.Children("001")

	first := pathsOf(q.Run(tree))
	second := pathsOf(q.Run(tree))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("results differ between runs:\n%s", diff)
	}
}

func TestSortedInsertionPoint(t *testing.T) {
	p := newPlanner(t, "title", "rank")

	level := []*types.Record{
		{ID: "a", Path: "001", Depth: 1, Data: map[string]interface{}{"title": "apple", "rank": int64(1)}},
		{ID: "b", Path: "002", Depth: 1, Data: map[string]interface{}{"title": "apple", "rank": int64(5)}},
		{ID: "c", Path: "003", Depth: 1, Data: map[string]interface{}{"title": "cherry"}},
	}

	testCases := []struct {
		name    string
		tuple   []interface{}
		exclude string
		want    []string
	}{
		{"before everything", []interface{}{"aardvark", nil}, "", []string{"001"}},
		{"tie broken by rank", []interface{}{"apple", int64(3)}, "", []string{"002"}},
		{"equal tuple goes after", []interface{}{"apple", int64(5)}, "", []string{"003"}},
		{"after everything", []interface{}{"zebra", nil}, "", []string{}},
		{"nil rank sorts first", []interface{}{"apple", nil}, "", []string{"001"}},
		{"exclude self", []interface{}{"apple", int64(0)}, "001", []string{"002"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := p.SortedInsertionPoint("", tc.tuple, tc.exclude)
			got := pathsOf(q.Run(level))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEmptyQuery(t *testing.T) {
	q := query.Query{Empty: true}
	if got := q.Run(tree); len(got) != 0 {
		t.Errorf("empty query matched %d rows", len(got))
	}
	sql, _, err := squirrel.Select("*").From("nodes").Where(q.Where(types.DefaultOptions())).ToSql()
	if err != nil {
		t.Fatalf("failed to build SQL: %v", err)
	}
	if !strings.Contains(sql, "1=0") {
		t.Errorf("expected a false condition, got %s", sql)
	}
}

func TestWhereSQL(t *testing.T) {
	p := newPlanner(t, "title", "rank")
	opts := types.DefaultOptions()
	opts.OrderBy = []string{"title", "rank"}

	build := func(q query.Query) (string, []interface{}) {
		t.Helper()
		sb := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question).Select("id").From("nodes")
		sql, args, err := q.ApplyTo(sb, opts).ToSql()
		if err != nil {
			t.Fatalf("failed to build SQL: %v", err)
		}
		return sql, args
	}

	t.Run("children interval", func(t *testing.T) {
		sql, args := build(p.Children("001"))
		for _, want := range []string{"path >= ?", "path <= ?", "depth = ?", "ORDER BY path ASC"} {
			if !strings.Contains(sql, want) {
				t.Errorf("expected %q in %s", want, sql)
			}
		}
		if diff := cmp.Diff([]interface{}{2, "001000", "001ZZZ"}, args); diff != "" {
			t.Errorf("args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("prefix uses substr", func(t *testing.T) {
		sql, args := build(p.Descendants("001"))
		if !strings.Contains(sql, "substr(path, 1, ?) = ?") {
			t.Errorf("expected substr prefix match, got %s", sql)
		}
		if strings.Contains(strings.ToUpper(sql), "LIKE") {
			t.Errorf("prefix match must not use LIKE: %s", sql)
		}
		if diff := cmp.Diff([]interface{}{3, "001", "001"}, args); diff != "" {
			t.Errorf("args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ancestors use IN", func(t *testing.T) {
		sql, _ := build(p.Ancestors("001002003"))
		if !strings.Contains(sql, "path IN (?,?)") {
			t.Errorf("expected IN list, got %s", sql)
		}
	})

	t.Run("tuple comparison", func(t *testing.T) {
		sql, args := build(p.SortedInsertionPoint("", []interface{}{"apple", nil}, ""))
		for _, want := range []string{"title > ?", "title = ?", "rank IS NOT NULL", "LIMIT 1"} {
			if !strings.Contains(sql, want) {
				t.Errorf("expected %q in %s", want, sql)
			}
		}
		if diff := cmp.Diff([]interface{}{1, "apple", "apple"}, args); diff != "" {
			t.Errorf("args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("descending shift", func(t *testing.T) {
		sql, _ := build(p.ShiftSet("001", "001002"))
		if !strings.Contains(sql, "ORDER BY path DESC") {
			t.Errorf("expected descending order, got %s", sql)
		}
	})
}

func TestPlanRebase(t *testing.T) {
	var plan query.Plan
	plan.Add(
		query.RewritePrefixOp{Old: "001003", New: "001004"},
		query.RewritePrefixOp{Old: "001002", New: "001003"},
	)

	testCases := map[string]string{
		"001002":    "001003",
		"001002005": "001003005",
		"001003":    "001004",
		"001003001": "001004001",
		"001001":    "001001",
		"002":       "002",
	}
	for in, want := range testCases {
		if got := plan.Rebase(in); got != want {
			t.Errorf("Rebase(%q) = %q, want %q", in, got, want)
		}
	}

	if plan.Len() != 2 || plan.Empty() {
		t.Errorf("unexpected plan size %d", plan.Len())
	}
	if !strings.Contains(plan.String(), "rewrite 001003* -> 001004*") {
		t.Errorf("unexpected plan rendering: %s", plan.String())
	}
}
