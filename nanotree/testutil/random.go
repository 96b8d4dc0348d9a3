package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanotree/nanotree"
	"github.com/arthur-debert/nanotree/types"
)

// NewRand returns a generator for RandomOps. The seed comes from
// NANOTREE_SEED when set, otherwise from the clock, and is logged so a
// failing run can be replayed.
func NewRand(t *testing.T) *rand.Rand {
	t.Helper()
	seed := time.Now().UnixNano()
	if v := os.Getenv("NANOTREE_SEED"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			t.Fatalf("bad NANOTREE_SEED %q: %v", v, err)
		}
		seed = parsed
	}
	t.Logf("random seed %d", seed)
	return rand.New(rand.NewSource(seed))
}

// RandomOps applies steps random mutations to m. After each one the tree
// must pass its invariant check; a mutation that fails with ErrCycle or
// ErrPathOverflow must leave the stored rows exactly as they were. Any
// other error fails the test.
func RandomOps(t *testing.T, m *nanotree.Manager, rng *rand.Rand, steps int) {
	t.Helper()
	ctx := context.Background()
	sorted := m.Options().Sorted()

	for i := 0; i < steps; i++ {
		nodes, err := m.All()
		if err != nil {
			t.Fatalf("step %d: failed to list: %v", i, err)
		}
		before := Snapshot(t, m)
		rec := Titled(randomTitle(rng, i, sorted))

		var desc string
		switch op := rng.Intn(10); {
		case len(nodes) == 0 || op == 0:
			desc = "add root"
			_, err = m.AddRoot(ctx, rec)
		case op < 4:
			n := nodes[rng.Intn(len(nodes))]
			desc = fmt.Sprintf("add child to %s", n.Path())
			_, err = n.AddChild(ctx, rec)
		case op < 6:
			n := nodes[rng.Intn(len(nodes))]
			pos := pick(rng, types.SiblingPositions, sorted)
			desc = fmt.Sprintf("add sibling %s of %s", pos, n.Path())
			_, err = n.AddSibling(ctx, pos, rec)
		case op < 9:
			n := nodes[rng.Intn(len(nodes))]
			target := nodes[rng.Intn(len(nodes))]
			pos := pick(rng, types.MovePositions, sorted)
			desc = fmt.Sprintf("move %s %s %s", n.Path(), pos, target.Path())
			err = n.Move(ctx, target, pos)
		default:
			n := nodes[rng.Intn(len(nodes))]
			desc = fmt.Sprintf("delete %s", n.Path())
			err = n.Delete(ctx)
		}

		switch {
		case err == nil:
			AssertInvariants(t, m)
		case errors.Is(err, types.ErrCycle), errors.Is(err, types.ErrPathOverflow):
			if diff := cmp.Diff(before, Snapshot(t, m)); diff != "" {
				t.Fatalf("step %d: failed %s changed the tree (-before +after):\n%s", i, desc, diff)
			}
		default:
			t.Fatalf("step %d: %s: %v\ntree:\n%s", i, desc, err, Outline(t, m))
		}
	}
}

// Snapshot lists every stored row as a comparable line.
func Snapshot(t *testing.T, m *nanotree.Manager) []string {
	t.Helper()
	nodes, err := m.All()
	if err != nil {
		t.Fatalf("failed to list tree: %v", err)
	}
	rows := make([]string, len(nodes))
	for i, n := range nodes {
		rows[i] = fmt.Sprintf("%s id=%s parent=%s depth=%d children=%d title=%s",
			n.Path(), n.ID(), n.ParentID(), n.Depth(), n.NumChildren(), Title(n))
	}
	return rows
}

// pick returns a position valid for the ordering mode.
func pick(rng *rand.Rand, positions []types.Position, sorted bool) types.Position {
	var valid []types.Position
	for _, p := range positions {
		if p.IsSorted() == sorted {
			valid = append(valid, p)
		}
	}
	return valid[rng.Intn(len(valid))]
}

// randomTitle draws from a small set when sorted so ties happen.
func randomTitle(rng *rand.Rand, i int, sorted bool) string {
	if sorted {
		return string(rune('a' + rng.Intn(6)))
	}
	return fmt.Sprintf("n%d", i)
}
