package nanotree_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanotree/nanotree"
	"github.com/arthur-debert/nanotree/nanotree/testutil"
	"github.com/arthur-debert/nanotree/types"
)

func TestMoveToFirstChildOfLeaf(t *testing.T) {
	ctx := context.Background()
	testutil.ForEachBackend(t, func(t *testing.T, open testutil.Opener) {
		m := open(t, stepThree())
		n := testutil.Build(t, m, `
			R
			  C1
			  C2
		`)

		// A first child of a leaf takes the first slot below it
		if err := n["C2"].Move(ctx, n["C1"], types.FirstChild); err != nil {
			t.Fatalf("failed to move: %v", err)
		}
		if n["C2"].Path() != "001001001" || n["C2"].ParentID() != n["C1"].ID() || n["C2"].Depth() != 3 {
			t.Errorf("unexpected moved node: %+v", n["C2"].Record())
		}
		if n["C1"].NumChildren() != 1 {
			t.Errorf("expected C1 to count 1 child, got %d", n["C1"].NumChildren())
		}
		if err := n["R"].Refresh(); err != nil || n["R"].NumChildren() != 1 {
			t.Errorf("expected R to count 1 child, got %d (%v)", n["R"].NumChildren(), err)
		}

		if err := n["R"].Move(ctx, n["C2"], types.LastChild); !errors.Is(err, nanotree.ErrCycle) {
			t.Errorf("expected ErrCycle moving under a descendant, got %v", err)
		}
		if err := n["C1"].Move(ctx, n["C2"], types.Left); !errors.Is(err, nanotree.ErrCycle) {
			t.Errorf("expected ErrCycle moving next to a descendant, got %v", err)
		}
		if err := n["C1"].Move(ctx, n["C1"], types.FirstChild); !errors.Is(err, nanotree.ErrCycle) {
			t.Errorf("expected ErrCycle moving under itself, got %v", err)
		}
		testutil.AssertInvariants(t, m)
	})
}

func TestMove(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		node   string
		target string
		pos    types.Position
		want   string
	}{
		{"subtree to last root", "a1", "c", types.LastSibling, `
			a
			  a2
			  a3
			b
			  b1
			c
			a1
			  a11
		`},
		{"left of own parent", "a2", "a", types.Left, `
			a2
			a
			  a1
			    a11
			  a3
			b
			  b1
			c
		`},
		{"right within level", "a1", "a2", types.Right, `
			a
			  a2
			  a1
			    a11
			  a3
			b
			  b1
			c
		`},
		{"first sibling within level", "a3", "a1", types.FirstSibling, `
			a
			  a3
			  a1
			    a11
			  a2
			b
			  b1
			c
		`},
		{"last child of other root", "a1", "b", types.LastChild, `
			a
			  a2
			  a3
			b
			  b1
			  a1
			    a11
			c
		`},
		{"first child of other root", "a1", "b", types.FirstChild, `
			a
			  a2
			  a3
			b
			  a1
			    a11
			  b1
			c
		`},
		{"root under deep leaf", "c", "a11", types.FirstChild, `
			a
			  a1
			    a11
			      c
			  a2
			  a3
			b
			  b1
		`},
		{"root with children into other root", "b", "a2", types.Left, `
			a
			  a1
			    a11
			  b
			    b1
			  a2
			  a3
			c
		`},
		{"default position", "b1", "a1", types.PositionDefault, `
			a
			  a1
			    a11
			  a2
			  a3
			  b1
			b
			c
		`},
	}
	testutil.ForEachBackend(t, func(t *testing.T, open testutil.Opener) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				m := open(t, stepThree())
				n := testutil.Build(t, m, sampleOutline)

				if err := n[tt.node].Move(ctx, n[tt.target], tt.pos); err != nil {
					t.Fatalf("failed to move: %v", err)
				}
				testutil.AssertOutline(t, m, tt.want)
				testutil.AssertInvariants(t, m)

				// The moved node is refreshed in place
				got, err := m.Get(n[tt.node].ID())
				if err != nil {
					t.Fatal(err)
				}
				if got.Path() != n[tt.node].Path() {
					t.Errorf("moved node not refreshed: have %s, stored %s", n[tt.node].Path(), got.Path())
				}
			})
		}
	})
}

func TestMoveWithinFullLevel(t *testing.T) {
	ctx := context.Background()
	opts := types.DefaultOptions()
	opts.Alphabet = "0123456789"
	opts.StepLength = 1

	testutil.ForEachBackend(t, func(t *testing.T, open testutil.Opener) {
		m := open(t, opts)
		n := testutil.Build(t, m, `
			a
			  a1
			b
			c
			d
			e
			f
			g
			h
			i
		`)

		// Nine roots take every slot, reordering them needs no spare one
		steps := []struct {
			node   string
			target string
			pos    types.Position
		}{
			{"i", "a", types.FirstSibling},
			{"h", "a", types.Left},
			{"i", "g", types.Right},
			{"c", "a", types.LastSibling},
			{"a", "b", types.Right},
		}
		for _, s := range steps {
			if err := n[s.node].Move(ctx, n[s.target], s.pos); err != nil {
				t.Fatalf("failed to move %s %s %s: %v", s.node, s.pos, s.target, err)
			}
		}
		testutil.AssertOutline(t, m, `
			h
			b
			a
			  a1
			d
			e
			f
			g
			i
			c
		`)
		testutil.AssertInvariants(t, m)

		if n["a1"].Refresh() != nil || n["a1"].Path() != "31" {
			t.Errorf("expected a1 to follow a to 31, got %s", n["a1"].Path())
		}
		if _, err := n["c"].AddSibling(ctx, types.LastSibling, testutil.Titled("j")); !errors.Is(err, nanotree.ErrPathOverflow) {
			t.Errorf("expected ErrPathOverflow adding a tenth root, got %v", err)
		}
	})
}

func TestMoveNoOps(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		node   string
		target string
		pos    types.Position
	}{
		{"left of itself", "a2", "a2", types.Left},
		{"right of itself", "a2", "a2", types.Right},
		{"left of next sibling", "a1", "a2", types.Left},
		{"right of previous sibling", "a2", "a1", types.Right},
		{"first sibling when first", "a1", "a3", types.FirstSibling},
		{"last sibling when last", "a3", "a1", types.LastSibling},
		{"last child when last", "a3", "a", types.LastChild},
		{"first child when first", "a1", "a", types.FirstChild},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.NewMemoryManager(t, stepThree())
			n := testutil.Build(t, m, sampleOutline)
			before := testutil.Snapshot(t, m)

			if err := n[tt.node].Move(ctx, n[tt.target], tt.pos); err != nil {
				t.Fatalf("failed to move: %v", err)
			}
			if diff := cmp.Diff(before, testutil.Snapshot(t, m)); diff != "" {
				t.Errorf("no-op move changed the tree (-before +after):\n%s", diff)
			}
		})
	}
}

func TestSortedMove(t *testing.T) {
	ctx := context.Background()
	testutil.ForEachBackend(t, func(t *testing.T, open testutil.Opener) {
		m := open(t, sortedOptions())
		n := testutil.Build(t, m, `
			a
			  b
			  d
			  f
			e
			  c
			  g
		`)
		before := testutil.Snapshot(t, m)

		// Already in order within its level
		if err := n["d"].Move(ctx, n["b"], types.SortedSibling); err != nil {
			t.Fatalf("failed to move: %v", err)
		}
		if diff := cmp.Diff(before, testutil.Snapshot(t, m)); diff != "" {
			t.Errorf("in place sorted move changed the tree:\n%s", diff)
		}
		if err := n["f"].Move(ctx, n["a"], types.SortedChild); err != nil {
			t.Fatalf("failed to move: %v", err)
		}
		if diff := cmp.Diff(before, testutil.Snapshot(t, m)); diff != "" {
			t.Errorf("in place sorted child move changed the tree:\n%s", diff)
		}

		if err := n["c"].Move(ctx, n["a"], types.SortedChild); err != nil {
			t.Fatalf("failed to move c: %v", err)
		}
		if err := n["g"].Move(ctx, n["d"], types.SortedSibling); err != nil {
			t.Fatalf("failed to move g: %v", err)
		}
		testutil.AssertOutline(t, m, `
			a
			  b
			  c
			  d
			  f
			  g
			e
		`)
		if n["e"].Refresh() != nil || n["e"].NumChildren() != 0 {
			t.Errorf("expected e to be a leaf, got %d children", n["e"].NumChildren())
		}
		testutil.AssertInvariants(t, m)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	testutil.ForEachBackend(t, func(t *testing.T, open testutil.Opener) {
		m := open(t, stepThree())
		n := testutil.Build(t, m, sampleOutline)

		if err := n["a1"].Delete(ctx); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := m.Get(n["a11"].ID()); !errors.Is(err, nanotree.ErrNotFound) {
			t.Errorf("expected a11 to go with its parent, got %v", err)
		}

		// Nested nodes in one call are counted once
		if err := m.Delete(ctx, n["b1"], n["b"], n["a3"]); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		testutil.AssertOutline(t, m, `
			a
			  a2
			c
		`)
		testutil.AssertInvariants(t, m)

		if err := m.Delete(ctx, n["b"]); !errors.Is(err, nanotree.ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}

		// Gaps left by deletes are not reused before the last slot
		a2 := n["a2"]
		if err := a2.Refresh(); err != nil {
			t.Fatal(err)
		}
		x, err := a2.AddSibling(ctx, types.LastSibling, testutil.Titled("x"))
		if err != nil {
			t.Fatal(err)
		}
		if x.Path() != "001003" {
			t.Errorf("expected x after a2 at 001003, got %s", x.Path())
		}
		testutil.AssertInvariants(t, m)
	})
}

func TestRandomOperations(t *testing.T) {
	small := types.DefaultOptions()
	small.Alphabet = "0123"
	small.StepLength = 2

	sorted := small
	sorted.OrderBy = []string{testutil.TitleField}

	for _, tc := range []struct {
		name string
		opts types.Options
	}{{"unsorted", small}, {"sorted", sorted}} {
		t.Run(tc.name, func(t *testing.T) {
			testutil.ForEachBackend(t, func(t *testing.T, open testutil.Opener) {
				m := open(t, tc.opts)
				testutil.RandomOps(t, m, testutil.NewRand(t), 150)
			})
		})
	}
}
