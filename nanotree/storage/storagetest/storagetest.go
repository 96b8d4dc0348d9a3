// Package storagetest checks a storage.Backend against the contract the
// tree relies on. Backend packages call Run from their tests.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanotree/nanotree/mpath"
	"github.com/arthur-debert/nanotree/nanotree/query"
	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/types"
)

// Opener creates an empty backend for the given options.
type Opener func(t *testing.T, opts types.Options) storage.Backend

// Options returns the configuration the suite runs with: three symbol
// steps and two orderBy fields.
func Options() types.Options {
	opts := types.DefaultOptions()
	opts.StepLength = 3
	opts.OrderBy = []string{"title", "rank"}
	return opts
}

// Run exercises every contract method of the backend.
func Run(t *testing.T, open Opener) {
	t.Run("InsertAndSelect", func(t *testing.T) { testInsertAndSelect(t, open) })
	t.Run("Queries", func(t *testing.T) { testQueries(t, open) })
	t.Run("SortedInsertionPoint", func(t *testing.T) { testSortedInsertionPoint(t, open) })
	t.Run("Counter", func(t *testing.T) { testCounter(t, open) })
	t.Run("SetParentID", func(t *testing.T) { testSetParentID(t, open) })
	t.Run("RewritePrefix", func(t *testing.T) { testRewritePrefix(t, open) })
	t.Run("DeleteRows", func(t *testing.T) { testDeleteRows(t, open) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open) })
	t.Run("TxSeesOwnWrites", func(t *testing.T) { testTxSeesOwnWrites(t, open) })
	t.Run("PrefixIsLiteral", func(t *testing.T) { testPrefixIsLiteral(t, open) })
}

func planner(t *testing.T, opts types.Options) *query.Planner {
	t.Helper()
	codec, err := mpath.FromOptions(opts)
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}
	return query.NewPlanner(codec, opts)
}

// Seed inserts rows given as path -> title and commits. Parent ids and
// child counts are derived from the paths.
func Seed(t *testing.T, b storage.Backend, rows map[string]string) map[string]string {
	t.Helper()
	step := b.Options().StepLength

	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make(map[string]string)
	// Parents before children: shorter paths first
	for depth := 1; len(ids) < len(rows); depth++ {
		for path, title := range rows {
			if len(path) != depth*step {
				continue
			}
			rec := types.NewRecord(map[string]interface{}{"title": title})
			rec.Path = path
			rec.Depth = depth
			if depth > 1 {
				rec.ParentID = ids[path[:len(path)-step]]
			}
			for p := range rows {
				if len(p) == len(path)+step && p[:len(path)] == path {
					rec.NumChildren++
				}
			}
			if err := tx.InsertRow(rec); err != nil {
				t.Fatalf("failed to insert %s: %v", path, err)
			}
			ids[path] = rec.ID
		}
		if depth > 64 {
			t.Fatalf("seed rows do not form a tree")
		}
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return ids
}

func paths(t *testing.T, r storage.Reader, q query.Query) []string {
	t.Helper()
	recs, err := r.Select(q)
	if err != nil {
		t.Fatalf("failed to select %s: %v", q, err)
	}
	out := []string{}
	for _, rec := range recs {
		out = append(out, rec.Path)
	}
	return out
}

var sample = map[string]string{
	"001":       "a",
	"001001":    "a1",
	"001001001": "a1x",
	"001002":    "a2",
	"002":       "b",
	"002001":    "b1",
	"003":       "c",
}

func testInsertAndSelect(t *testing.T, open Opener) {
	b := open(t, Options())
	ids := Seed(t, b, sample)

	rec, err := b.SelectByPath("001001")
	if err != nil {
		t.Fatalf("failed to select by path: %v", err)
	}
	if rec.ID != ids["001001"] || rec.Depth != 2 || rec.ParentID != ids["001"] {
		t.Errorf("unexpected record: %+v", rec)
	}
	if title, _ := rec.Get("title"); title != "a1" {
		t.Errorf("expected title a1, got %v", title)
	}

	byID, err := b.SelectByID(ids["001"])
	if err != nil {
		t.Fatalf("failed to select by id: %v", err)
	}
	if byID.Path != "001" || byID.NumChildren != 2 || byID.ParentID != "" {
		t.Errorf("unexpected root: %+v", byID)
	}

	if _, err := b.SelectByPath("009"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := b.SelectByID("missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Returned records are copies
	rec.Path = "changed"
	again, _ := b.SelectByPath("001001")
	if again == nil || again.Path != "001001" {
		t.Errorf("mutating a returned record changed the store")
	}
}

func testQueries(t *testing.T, open Opener) {
	opts := Options()
	b := open(t, opts)
	Seed(t, b, sample)
	p := planner(t, opts)

	testCases := []struct {
		name string
		q    query.Query
		want []string
	}{
		{"roots", p.Roots(), []string{"001", "002", "003"}},
		{"children", p.Children("001"), []string{"001001", "001002"}},
		{"no children", p.Children("003"), []string{}},
		{"last in level", p.LastInLevel(""), []string{"003"}},
		{"next sibling", p.NextSibling("001"), []string{"002"}},
		{"prev sibling", p.PrevSibling("001002"), []string{"001001"}},
		{"ancestors", p.Ancestors("001001001"), []string{"001", "001001"}},
		{"ancestors of root", p.Ancestors("001"), []string{}},
		{"descendants", p.Descendants("001"), []string{"001001", "001001001", "001002"}},
		{"shift set", p.ShiftSet("", "002"), []string{"003", "002"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, paths(t, b, tc.q)); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", tc.q, diff)
			}
		})
	}

	n, err := b.Count(p.Descendants("001"))
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 descendants, got %d", n)
	}
}

func testSortedInsertionPoint(t *testing.T, open Opener) {
	opts := Options()
	b := open(t, opts)
	p := planner(t, opts)

	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	rows := []struct {
		path  string
		title string
		rank  interface{}
	}{
		{"001", "apple", int64(1)},
		{"002", "apple", int64(5)},
		{"003", "cherry", nil},
	}
	for _, row := range rows {
		rec := types.NewRecord(map[string]interface{}{"title": row.title, "rank": row.rank})
		rec.Path, rec.Depth = row.path, 1
		if err := tx.InsertRow(rec); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	testCases := []struct {
		name  string
		tuple []interface{}
		want  []string
	}{
		{"first", []interface{}{"aardvark", nil}, []string{"001"}},
		{"between ranks", []interface{}{"apple", int64(3)}, []string{"002"}},
		{"float rank", []interface{}{"apple", 4.5}, []string{"002"}},
		{"equal goes after", []interface{}{"apple", int64(5)}, []string{"003"}},
		{"nil rank", []interface{}{"apple", nil}, []string{"001"}},
		{"cherry with rank", []interface{}{"cherry", int64(1)}, []string{}},
		{"past the end", []interface{}{"zebra", nil}, []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := paths(t, b, p.SortedInsertionPoint("", tc.tuple, ""))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func testCounter(t *testing.T, open Opener) {
	b := open(t, Options())
	Seed(t, b, sample)

	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if err := tx.UpdateCounter("001", 1); err != nil {
		t.Fatalf("failed to increment: %v", err)
	}
	if err := tx.UpdateCounter("003", -1); err == nil {
		t.Errorf("expected error driving a counter below zero")
	}
	if err := tx.UpdateCounter("009", 1); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing row, got %v", err)
	}
	_ = tx.Rollback()

	// A failed statement must not leave earlier writes behind after rollback
	rec, err := b.SelectByPath("001")
	if err != nil {
		t.Fatalf("failed to select: %v", err)
	}
	if rec.NumChildren != 2 {
		t.Errorf("expected 2 after rollback, got %d", rec.NumChildren)
	}

	tx, err = b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if err := tx.UpdateCounter("001", -1); err != nil {
		t.Fatalf("failed to decrement: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	rec, _ = b.SelectByPath("001")
	if rec.NumChildren != 1 {
		t.Errorf("expected 1, got %d", rec.NumChildren)
	}
}

func testSetParentID(t *testing.T, open Opener) {
	b := open(t, Options())
	ids := Seed(t, b, sample)

	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if err := tx.SetParentID("002001", ids["003"]); err != nil {
		t.Fatalf("failed to set parent: %v", err)
	}
	if err := tx.SetParentID("001", ""); err != nil {
		t.Fatalf("failed to clear parent: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	rec, _ := b.SelectByPath("002001")
	if rec.ParentID != ids["003"] {
		t.Errorf("expected parent %s, got %s", ids["003"], rec.ParentID)
	}
	root, _ := b.SelectByPath("001")
	if root.ParentID != "" {
		t.Errorf("expected no parent, got %q", root.ParentID)
	}
}

func testRewritePrefix(t *testing.T, open Opener) {
	opts := Options()
	b := open(t, opts)
	ids := Seed(t, b, sample)
	p := planner(t, opts)

	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}

	// Move subtree 001001 under 003 as its first child
	n, err := tx.RewritePathPrefix("001001", "003001", opts.StepLength)
	if err != nil {
		t.Fatalf("failed to rewrite: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows rewritten, got %d", n)
	}

	// Promote 002001 to a root
	if _, err := tx.RewritePathPrefix("002001", "004", opts.StepLength); err != nil {
		t.Fatalf("failed to rewrite: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	want := []string{"001", "001002", "002", "003", "003001", "003001001", "004"}
	if diff := cmp.Diff(want, paths(t, b, p.All())); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	deep, err := b.SelectByID(ids["001001001"])
	if err != nil {
		t.Fatalf("failed to select: %v", err)
	}
	if deep.Path != "003001001" || deep.Depth != 3 {
		t.Errorf("unexpected rewritten row: %+v", deep)
	}
	promoted, _ := b.SelectByID(ids["002001"])
	if promoted.Path != "004" || promoted.Depth != 1 {
		t.Errorf("unexpected promoted row: %+v", promoted)
	}
}

func testDeleteRows(t *testing.T, open Opener) {
	opts := Options()
	b := open(t, opts)
	Seed(t, b, sample)
	p := planner(t, opts)

	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	n, err := tx.DeleteRows(p.Subtree("001"))
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 rows deleted, got %d", n)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	want := []string{"002", "002001", "003"}
	if diff := cmp.Diff(want, paths(t, b, p.All())); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func testRollback(t *testing.T, open Opener) {
	opts := Options()
	b := open(t, opts)
	Seed(t, b, sample)
	p := planner(t, opts)
	before := paths(t, b, p.All())

	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if _, err := tx.DeleteRows(p.Subtree("002")); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := tx.RewritePathPrefix("003", "005", opts.StepLength); err != nil {
		t.Fatalf("failed to rewrite: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("failed to roll back: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("second rollback should be a no-op, got %v", err)
	}

	if diff := cmp.Diff(before, paths(t, b, p.All())); diff != "" {
		t.Errorf("rollback left changes (-want +got):\n%s", diff)
	}

	// The store accepts new transactions afterwards
	tx, err = b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin after rollback: %v", err)
	}
	_ = tx.Rollback()
}

func testTxSeesOwnWrites(t *testing.T, open Opener) {
	opts := Options()
	b := open(t, opts)
	Seed(t, b, sample)
	p := planner(t, opts)

	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.RewritePathPrefix("003", "004", opts.StepLength); err != nil {
		t.Fatalf("failed to rewrite: %v", err)
	}
	rec := types.NewRecord(map[string]interface{}{"title": "new"})
	rec.Path, rec.Depth = "003", 1
	if err := tx.InsertRow(rec); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if rec.ID == "" {
		t.Errorf("insert should assign an id")
	}

	if diff := cmp.Diff([]string{"001", "002", "003", "004"}, paths(t, tx, p.Roots())); diff != "" {
		t.Errorf("tx view mismatch (-want +got):\n%s", diff)
	}
	got, err := tx.SelectByID(rec.ID)
	if err != nil || got.Path != "003" {
		t.Errorf("expected new row at 003, got %+v (%v)", got, err)
	}
}

func testPrefixIsLiteral(t *testing.T, open Opener) {
	// '_' and '%' would be wildcards in LIKE; lowercase letters would match
	// uppercase ones under SQLite's default LIKE
	opts := Options()
	opts.Alphabet = "%0_"
	opts.StepLength = 2
	b := open(t, opts)
	p := planner(t, opts)

	Seed(t, b, map[string]string{
		"%_":   "x",
		"%_%0": "x1",
		"0_":   "y",
		"0_%0": "y1",
	})

	if diff := cmp.Diff([]string{"%_%0"}, paths(t, b, p.Descendants("%_"))); diff != "" {
		t.Errorf("descendants mismatch (-want +got):\n%s", diff)
	}
}
