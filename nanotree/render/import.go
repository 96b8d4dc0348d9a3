package render

import (
	"context"
	"fmt"

	"github.com/arthur-debert/nanotree/nanotree"
	"github.com/arthur-debert/nanotree/types"
)

// Import adds parsed entries to m. Depth 1 entries become roots, or
// children of under when it is not nil. Each node is added in its own
// transaction; on error the nodes added so far stay and are returned.
func Import(ctx context.Context, m *nanotree.Manager, under *nanotree.Node, entries []Entry) ([]*nanotree.Node, error) {
	var created []*nanotree.Node
	// stack[d-1] is the most recent node at depth d
	var stack []*nanotree.Node

	for i, e := range entries {
		if e.Depth < 1 || e.Depth > len(stack)+1 {
			return created, fmt.Errorf("entry %d (%q): depth %d does not follow depth %d", i+1, e.Title, e.Depth, len(stack))
		}
		stack = stack[:e.Depth-1]

		rec := types.NewRecord(map[string]interface{}{TitleField: e.Title})
		var (
			n   *nanotree.Node
			err error
		)
		switch {
		case e.Depth > 1:
			n, err = stack[e.Depth-2].AddChild(ctx, rec)
		case under != nil:
			n, err = under.AddChild(ctx, rec)
		default:
			n, err = m.AddRoot(ctx, rec)
		}
		if err != nil {
			return created, fmt.Errorf("failed to add %q: %w", e.Title, err)
		}
		created = append(created, n)
		stack = append(stack, n)
	}
	return created, nil
}
