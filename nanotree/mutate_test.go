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

func sortedOptions() types.Options {
	opts := stepThree()
	opts.OrderBy = []string{"title"}
	return opts
}

func TestAddChildAndSiblings(t *testing.T) {
	ctx := context.Background()
	testutil.ForEachBackend(t, func(t *testing.T, open testutil.Opener) {
		m := open(t, stepThree())

		// Children fill slots from 1 in insertion order
		r, err := m.AddRoot(ctx, testutil.Titled("R"))
		if err != nil {
			t.Fatalf("failed to add root: %v", err)
		}
		if r.Path() != "001" || r.Depth() != 1 || !r.IsRoot() {
			t.Fatalf("unexpected root: %+v", r.Record())
		}
		c1, err := r.AddChild(ctx, testutil.Titled("C1"))
		if err != nil {
			t.Fatalf("failed to add C1: %v", err)
		}
		if c1.Path() != "001001" || c1.Depth() != 2 || r.NumChildren() != 1 {
			t.Fatalf("unexpected C1 %s at depth %d, R has %d children", c1.Path(), c1.Depth(), r.NumChildren())
		}
		c2, err := r.AddChild(ctx, testutil.Titled("C2"))
		if err != nil {
			t.Fatalf("failed to add C2: %v", err)
		}
		if c2.Path() != "001002" || r.NumChildren() != 2 {
			t.Fatalf("unexpected C2 %s, R has %d children", c2.Path(), r.NumChildren())
		}

		// Inserting left of C1 shifts C1 and C2 one slot right
		n, err := c1.AddSibling(ctx, types.Left, testutil.Titled("N"))
		if err != nil {
			t.Fatalf("failed to add sibling: %v", err)
		}
		if n.Path() != "001001" {
			t.Errorf("expected new sibling at 001001, got %s", n.Path())
		}
		if c1.Path() != "001002" {
			t.Errorf("expected C1 refreshed to 001002, got %s", c1.Path())
		}
		if err := c2.Refresh(); err != nil || c2.Path() != "001003" {
			t.Errorf("expected C2 at 001003, got %s (%v)", c2.Path(), err)
		}
		if err := r.Refresh(); err != nil || r.NumChildren() != 3 {
			t.Errorf("expected R to count 3 children, got %d (%v)", r.NumChildren(), err)
		}
		testutil.AssertInvariants(t, m)
	})
}

func TestAddSiblingPositions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		pos    types.Position
		anchor string
		want   string
	}{
		{types.FirstSibling, "a2", "x a1 a11 a2 a3"},
		{types.Left, "a2", "a1 a11 x a2 a3"},
		{types.Right, "a2", "a1 a11 a2 x a3"},
		{types.Right, "a3", "a1 a11 a2 a3 x"},
		{types.LastSibling, "a1", "a1 a11 a2 a3 x"},
		{types.PositionDefault, "a1", "a1 a11 a2 a3 x"},
	}
	testutil.ForEachBackend(t, func(t *testing.T, open testutil.Opener) {
		for _, tt := range tests {
			t.Run(tt.pos.String()+"_"+tt.anchor, func(t *testing.T) {
				m := open(t, stepThree())
				n := testutil.Build(t, m, sampleOutline)

				if _, err := n[tt.anchor].AddSibling(ctx, tt.pos, testutil.Titled("x")); err != nil {
					t.Fatalf("failed to add sibling: %v", err)
				}
				descendants, err := n["a"].Descendants()
				if err != nil {
					t.Fatal(err)
				}
				got := ""
				for i, title := range testutil.Titles(descendants) {
					if i > 0 {
						got += " "
					}
					got += title
				}
				if got != tt.want {
					t.Errorf("expected %q, got %q", tt.want, got)
				}
				testutil.AssertInvariants(t, m)
			})
		}
	})
}

func TestAddSiblingShiftsSubtrees(t *testing.T) {
	ctx := context.Background()
	m := testutil.NewMemoryManager(t, stepThree())
	n := testutil.Build(t, m, sampleOutline)

	if _, err := n["a"].AddSibling(ctx, types.FirstSibling, testutil.Titled("x")); err != nil {
		t.Fatalf("failed to add sibling: %v", err)
	}
	moved, err := m.GetByPath("002001001")
	if err != nil {
		t.Fatalf("expected a11 shifted with its root: %v", err)
	}
	if testutil.Title(moved) != "a11" || moved.Depth() != 3 {
		t.Errorf("unexpected row at 002001001: %+v", moved.Record())
	}
	testutil.AssertOutline(t, m, `
		x
		a
		  a1
		    a11
		  a2
		  a3
		b
		  b1
		c
	`)
	testutil.AssertInvariants(t, m)
}

func TestSortedInsertion(t *testing.T) {
	ctx := context.Background()
	testutil.ForEachBackend(t, func(t *testing.T, open testutil.Opener) {
		m := open(t, sortedOptions())
		for _, title := range []string{"m", "c", "x", "a"} {
			if _, err := m.AddRoot(ctx, testutil.Titled(title)); err != nil {
				t.Fatalf("failed to add root %s: %v", title, err)
			}
		}
		roots, err := m.RootNodes()
		assertTitles(t, "sorted roots", roots, err, "a", "c", "m", "x")

		mRoot := roots[2]
		for _, title := range []string{"k", "b", "z", "b"} {
			if _, err := mRoot.AddChild(ctx, testutil.Titled(title)); err != nil {
				t.Fatalf("failed to add child %s: %v", title, err)
			}
		}
		children, err := mRoot.Children()
		assertTitles(t, "sorted children", children, err, "b", "b", "k", "z")

		if _, err := children[0].AddSibling(ctx, types.PositionDefault, testutil.Titled("d")); err != nil {
			t.Fatalf("failed to add sorted sibling: %v", err)
		}
		children, err = mRoot.Children()
		assertTitles(t, "after sorted sibling", children, err, "b", "b", "d", "k", "z")
		testutil.AssertInvariants(t, m)
	})
}

func TestPositionValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("unsorted", func(t *testing.T) {
		m := testutil.NewMemoryManager(t, stepThree())
		n := testutil.Build(t, m, sampleOutline)

		// Sorted positions need order by fields
		if _, err := n["a"].AddSibling(ctx, types.SortedSibling, testutil.Titled("x")); !errors.Is(err, nanotree.ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition for sorted-sibling, got %v", err)
		}
		if _, err := n["a"].AddSibling(ctx, types.FirstChild, testutil.Titled("x")); !errors.Is(err, nanotree.ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition for a child position, got %v", err)
		}
		if _, err := n["a"].AddSibling(ctx, types.Position("middle"), testutil.Titled("x")); !errors.Is(err, nanotree.ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition for an unknown position, got %v", err)
		}
		if err := n["b"].Move(ctx, n["a"], types.SortedChild); !errors.Is(err, nanotree.ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition for sorted-child, got %v", err)
		}
	})

	t.Run("sorted", func(t *testing.T) {
		m := testutil.NewMemoryManager(t, sortedOptions())
		n := testutil.Build(t, m, sampleOutline)

		// Ordered levels only take sorted positions
		if _, err := n["a"].AddSibling(ctx, types.Left, testutil.Titled("x")); !errors.Is(err, nanotree.ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition for left, got %v", err)
		}
		if err := n["b"].Move(ctx, n["a"], types.LastChild); !errors.Is(err, nanotree.ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition for last-child, got %v", err)
		}
		if err := n["b"].Move(ctx, n["a"], types.SortedChild); err != nil {
			t.Errorf("sorted-child should be accepted: %v", err)
		}
	})
}

func TestNewRecordChecks(t *testing.T) {
	ctx := context.Background()
	m := testutil.NewMemoryManager(t, stepThree())
	n := testutil.Build(t, m, sampleOutline)

	rec := testutil.Titled("x")
	if _, err := n["a"].AddChild(ctx, rec); err != nil {
		t.Fatalf("failed to add child: %v", err)
	}
	if rec.ID == "" || rec.Path != "001004" {
		t.Errorf("expected the record to be filled in, got %+v", rec)
	}
	if _, err := n["b"].AddChild(ctx, rec); !errors.Is(err, nanotree.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
	if _, err := m.AddRoot(ctx, rec); !errors.Is(err, nanotree.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized for a stored record, got %v", err)
	}

	parented := testutil.Titled("y")
	parented.ParentID = n["a"].ID()
	if _, err := m.AddRoot(ctx, parented); !errors.Is(err, nanotree.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized for a parented record, got %v", err)
	}

	if _, err := n["a"].AddChild(ctx, n["a"].Record()); !errors.Is(err, nanotree.ErrSelfReference) {
		t.Errorf("expected ErrSelfReference, got %v", err)
	}
	if _, err := n["a"].AddSibling(ctx, types.Left, n["a"].Record()); !errors.Is(err, nanotree.ErrSelfReference) {
		t.Errorf("expected ErrSelfReference for sibling, got %v", err)
	}
	testutil.AssertInvariants(t, m)
}

func TestOrderValuesAreValidated(t *testing.T) {
	m := testutil.NewMemoryManager(t, sortedOptions())
	rec := types.NewRecord(map[string]interface{}{"title": []string{"not", "simple"}})
	if _, err := m.AddRoot(context.Background(), rec); err == nil {
		t.Fatal("expected a non-simple order value to be rejected")
	}
	if got := testutil.Snapshot(t, m); len(got) != 0 {
		t.Errorf("expected empty tree, got %v", got)
	}
}

func TestPathOverflow(t *testing.T) {
	ctx := context.Background()
	opts := types.DefaultOptions()
	opts.StepLength = 2
	m := testutil.NewMemoryManager(t, opts)

	// Fill the root level to the last encodable ordinal, 1295 in two base
	// 36 digits
	tx, err := m.Backend().Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	max := m.Codec().MaxOrdinal()
	if max != 1295 {
		t.Fatalf("expected 1295 ordinals, got %d", max)
	}
	for i := int64(1); i <= max; i++ {
		path, err := m.Codec().BuildPath("", i)
		if err != nil {
			t.Fatal(err)
		}
		rec := testutil.Titled(path)
		rec.Path = path
		rec.Depth = 1
		if err := tx.InsertRow(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	testutil.AssertInvariants(t, m)
	before := testutil.Snapshot(t, m)

	_, err = m.AddRoot(ctx, testutil.Titled("overflow"))
	var overflow *nanotree.OverflowError
	if !errors.As(err, &overflow) || !errors.Is(err, nanotree.ErrPathOverflow) {
		t.Fatalf("expected an overflow error, got %v", err)
	}
	if overflow.Ordinal != 1296 || overflow.Max != 1295 {
		t.Errorf("unexpected overflow details: %+v", overflow)
	}

	first, err := m.FirstRootNode()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.AddSibling(ctx, types.Left, testutil.Titled("x")); !errors.Is(err, nanotree.ErrPathOverflow) {
		t.Errorf("expected shifting a full level to overflow, got %v", err)
	}
	if diff := cmp.Diff(before, testutil.Snapshot(t, m)); diff != "" {
		t.Errorf("overflow changed the tree (-before +after):\n%s", diff)
	}

	// The children level of a full root still has room
	if _, err := first.AddChild(ctx, testutil.Titled("child")); err != nil {
		t.Errorf("failed to add child under full level: %v", err)
	}
}
