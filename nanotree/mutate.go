package nanotree

import (
	"context"
	"fmt"

	"github.com/arthur-debert/nanotree/nanotree/mpath"
	"github.com/arthur-debert/nanotree/nanotree/query"
	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/types"
)

// AddChild stores rec under n, after the last child or, with ordering
// configured, at its sorted place. rec gets its id and path filled in.
func (n *Node) AddChild(ctx context.Context, rec *types.Record) (*Node, error) {
	m := n.m
	if err := m.checkNew(rec, n.rec); err != nil {
		return nil, err
	}
	pos := types.LastSibling
	if m.opts.Sorted() {
		pos = types.SortedSibling
	}

	var created *types.Record
	err := m.withTx(ctx, "add_child", func(tx storage.Tx) (*query.Plan, error) {
		parent, err := tx.SelectByID(n.rec.ID)
		if err != nil {
			return nil, err
		}
		row, err := m.newRow(rec)
		if err != nil {
			return nil, err
		}

		plan := &query.Plan{}
		path, err := m.planSlot(tx, plan, parent.Path, pos, "", row.OrderTuple(m.opts.OrderBy), "")
		if err != nil {
			return nil, err
		}
		created = m.place(row, path, parent.ID)
		plan.Add(
			query.InsertOp{Record: created},
			query.AdjustChildrenOp{Path: parent.Path, Delta: 1},
		)
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	if err := n.Refresh(); err != nil {
		return nil, err
	}
	return m.adopt(rec, created), nil
}

// AddSibling stores rec in n's level at pos. PositionDefault resolves to
// SortedSibling with ordering configured, LastSibling otherwise. Siblings
// after the new slot shift one step right, subtrees included.
func (n *Node) AddSibling(ctx context.Context, pos types.Position, rec *types.Record) (*Node, error) {
	m := n.m
	pos, err := m.processAddSiblingPos(pos)
	if err != nil {
		return nil, err
	}
	if err := m.checkNew(rec, n.rec); err != nil {
		return nil, err
	}

	var created *types.Record
	err = m.withTx(ctx, "add_sibling", func(tx storage.Tx) (*query.Plan, error) {
		anchor, err := tx.SelectByID(n.rec.ID)
		if err != nil {
			return nil, err
		}
		row, err := m.newRow(rec)
		if err != nil {
			return nil, err
		}

		plan := &query.Plan{}
		parentPath := m.codec.ParentPath(anchor.Path)
		path, err := m.planSlot(tx, plan, parentPath, pos, anchor.Path, row.OrderTuple(m.opts.OrderBy), "")
		if err != nil {
			return nil, err
		}
		created = m.place(row, path, anchor.ParentID)
		plan.Add(query.InsertOp{Record: created})
		if parentPath != "" {
			plan.Add(query.AdjustChildrenOp{Path: parentPath, Delta: 1})
		}
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	if err := n.Refresh(); err != nil {
		return nil, err
	}
	return m.adopt(rec, created), nil
}

// Move relocates n and its subtree relative to target. Child positions
// place n under target; the others place it in target's level.
// PositionDefault resolves to SortedSibling with ordering configured,
// LastSibling otherwise. Moving n under itself or one of its descendants
// fails with ErrCycle.
func (n *Node) Move(ctx context.Context, target *Node, pos types.Position) error {
	m := n.m
	if target == nil {
		return fmt.Errorf("%w: nil move target", types.ErrNotFound)
	}
	pos, err := m.processMovePos(pos)
	if err != nil {
		return err
	}

	err = m.withTx(ctx, "move", func(tx storage.Tx) (*query.Plan, error) {
		node, err := tx.SelectByID(n.rec.ID)
		if err != nil {
			return nil, err
		}
		tgt, err := tx.SelectByID(target.rec.ID)
		if err != nil {
			return nil, err
		}
		return m.planMove(tx, node, tgt, pos)
	})
	if err != nil {
		return err
	}
	if err := n.Refresh(); err != nil {
		return err
	}
	if target != n {
		return target.Refresh()
	}
	return nil
}

// planMove plans moving node to pos relative to tgt. An empty plan means
// the node is already there.
func (m *Manager) planMove(tx storage.Reader, node, tgt *types.Record, pos types.Position) (*query.Plan, error) {
	plan := &query.Plan{}
	if tgt.ID == node.ID {
		if pos.IsChild() {
			return nil, fmt.Errorf("%w: %s under itself", types.ErrCycle, node.Path)
		}
		if pos == types.Left || pos == types.Right {
			return plan, nil
		}
	}
	if mpath.IsAncestor(node.Path, tgt.Path) {
		return nil, fmt.Errorf("%w: %s is below %s", types.ErrCycle, tgt.Path, node.Path)
	}

	// Resolve the destination level
	parentPath, parentID := m.codec.ParentPath(tgt.Path), tgt.ParentID
	if pos.IsChild() {
		parentPath, parentID = tgt.Path, tgt.ID
		pos = childToSibling(pos)
	}

	tuple := node.OrderTuple(m.opts.OrderBy)
	inPlace, err := m.inPlace(tx, node, tgt, parentPath, pos, tuple)
	if err != nil || inPlace {
		return plan, err
	}

	if m.codec.ParentPath(node.Path) == parentPath {
		if err := m.planLevelMove(tx, plan, node, tgt, parentPath, pos, tuple); err != nil {
			return nil, err
		}
		return plan, nil
	}

	newPath, err := m.planSlot(tx, plan, parentPath, pos, tgt.Path, tuple, node.Path)
	if err != nil {
		return nil, err
	}

	// Shifts may have moved the node or its old parent
	oldPath := plan.Rebase(node.Path)
	oldParentPath := plan.Rebase(m.codec.ParentPath(node.Path))
	plan.Add(query.RewritePrefixOp{Old: oldPath, New: newPath})

	if node.ParentID != parentID {
		if oldParentPath != "" {
			plan.Add(query.AdjustChildrenOp{Path: oldParentPath, Delta: -1})
		}
		if parentPath != "" {
			plan.Add(query.AdjustChildrenOp{Path: parentPath, Delta: 1})
		}
		plan.Add(query.SetParentOp{Path: newPath, ParentID: parentID})
	}
	return plan, nil
}

// inPlace reports whether node already sits where pos would put it.
func (m *Manager) inPlace(r storage.Reader, node, tgt *types.Record, parentPath string, pos types.Position, tuple []interface{}) (bool, error) {
	if m.codec.ParentPath(node.Path) != parentPath {
		return false, nil
	}

	var q query.Query
	switch pos {
	case types.FirstSibling:
		q = m.planner.FirstInLevel(parentPath)
	case types.LastSibling:
		q = m.planner.LastInLevel(parentPath)
	case types.Left:
		q = m.planner.NextSibling(node.Path)
	case types.Right:
		q = m.planner.PrevSibling(node.Path)
	case types.SortedSibling:
		found, err := selectOne(r, m.planner.SortedInsertionPoint(parentPath, tuple, node.Path))
		if err != nil {
			return false, err
		}
		if found == nil {
			last, err := selectOne(r, m.planner.LastInLevel(parentPath))
			return err == nil && last != nil && last.ID == node.ID, err
		}
		// In place when found is the very next row after node
		if found.Path < node.Path {
			return false, nil
		}
		between, err := r.Count(m.planner.Between(parentPath, node.Path, found.Path))
		return err == nil && between == 0, err
	default:
		return false, nil
	}

	got, err := selectOne(r, q)
	if err != nil || got == nil {
		return false, err
	}
	switch pos {
	case types.Left, types.Right:
		return got.ID == tgt.ID, nil
	default:
		return got.ID == node.ID, nil
	}
}

// planLevelMove reorders node inside its own level. The subtree is parked
// on a scratch path, the rows between its old and new slot slide one step
// toward the old slot, and the subtree lands on the slot they vacated. The
// level keeps its size, so a full level can still be reordered.
func (m *Manager) planLevelMove(r storage.Reader, plan *query.Plan, node, tgt *types.Record, parentPath string, pos types.Position, tuple []interface{}) error {
	// before is the row that follows node once moved, "" for the level end
	var before string
	switch pos {
	case types.Left:
		before = tgt.Path
	case types.Right:
		next, err := selectOne(r, m.planner.NextSibling(tgt.Path))
		if err != nil {
			return err
		}
		if next != nil {
			before = next.Path
		}
	case types.FirstSibling:
		first, err := selectOne(r, m.planner.FirstInLevel(parentPath))
		if err != nil {
			return err
		}
		if first != nil {
			before = first.Path
		}
	case types.LastSibling:
	case types.SortedSibling:
		found, err := selectOne(r, m.planner.SortedInsertionPoint(parentPath, tuple, node.Path))
		if err != nil {
			return err
		}
		if found != nil {
			before = found.Path
		}
	default:
		return fmt.Errorf("%w: %s", types.ErrInvalidPosition, pos)
	}

	parked := m.codec.ScratchPath(parentPath)
	plan.Add(query.RewritePrefixOp{Old: node.Path, New: parked})

	dest := node.Path
	if before != "" && before < node.Path {
		// Moving left: rows in [before, node) step right, last first
		q := m.planner.ShiftSet(parentPath, before)
		q.Before = node.Path
		rows, err := r.Select(q)
		if err != nil {
			return err
		}
		for _, row := range rows {
			next, err := m.codec.Increment(row.Path)
			if err != nil {
				return err
			}
			plan.Add(query.RewritePrefixOp{Old: row.Path, New: next})
		}
		dest = before
	} else {
		// Moving right: rows in (node, before) step left, first first
		rows, err := r.Select(m.planner.Between(parentPath, node.Path, before))
		if err != nil {
			return err
		}
		for _, row := range rows {
			prev, err := m.codec.Decrement(row.Path)
			if err != nil {
				return err
			}
			plan.Add(query.RewritePrefixOp{Old: row.Path, New: prev})
			dest = row.Path
		}
	}

	plan.Add(query.RewritePrefixOp{Old: parked, New: dest})
	return nil
}

func childToSibling(pos types.Position) types.Position {
	switch pos {
	case types.FirstChild:
		return types.FirstSibling
	case types.SortedChild:
		return types.SortedSibling
	default:
		return types.LastSibling
	}
}

// planSlot picks the path a node takes at pos in the level under
// parentPath, adding the shifts that free it to plan. anchor is the row
// left and right are relative to; exclude keeps a moving node out of the
// sorted search.
func (m *Manager) planSlot(r storage.Reader, plan *query.Plan, parentPath string, pos types.Position, anchor string, tuple []interface{}, exclude string) (string, error) {
	switch pos {
	case types.LastSibling:
		return m.nextFreeSlot(r, parentPath)

	case types.FirstSibling:
		first, err := selectOne(r, m.planner.FirstInLevel(parentPath))
		if err != nil {
			return "", err
		}
		if first == nil {
			return m.codec.BuildPath(parentPath, 1)
		}
		return m.shiftFrom(r, plan, parentPath, first.Path)

	case types.Left:
		return m.shiftFrom(r, plan, parentPath, anchor)

	case types.Right:
		target, err := m.codec.Increment(anchor)
		if err != nil {
			return "", err
		}
		return m.shiftFrom(r, plan, parentPath, target)

	case types.SortedSibling:
		found, err := selectOne(r, m.planner.SortedInsertionPoint(parentPath, tuple, exclude))
		if err != nil {
			return "", err
		}
		if found == nil {
			return m.nextFreeSlot(r, parentPath)
		}
		return m.shiftFrom(r, plan, parentPath, found.Path)

	default:
		return "", fmt.Errorf("%w: %s", types.ErrInvalidPosition, pos)
	}
}

// nextFreeSlot is the slot after the last row of a level.
func (m *Manager) nextFreeSlot(r storage.Reader, parentPath string) (string, error) {
	last, err := selectOne(r, m.planner.LastInLevel(parentPath))
	if err != nil {
		return "", err
	}
	if last == nil {
		return m.codec.BuildPath(parentPath, 1)
	}
	return m.codec.Increment(last.Path)
}

// shiftFrom frees target by moving every row of the level at or after it
// one step right, last row first so no rewrite lands on a taken path.
func (m *Manager) shiftFrom(r storage.Reader, plan *query.Plan, parentPath, target string) (string, error) {
	rows, err := r.Select(m.planner.ShiftSet(parentPath, target))
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		next, err := m.codec.Increment(row.Path)
		if err != nil {
			return "", err
		}
		plan.Add(query.RewritePrefixOp{Old: row.Path, New: next})
	}
	return target, nil
}

func (m *Manager) processAddSiblingPos(pos types.Position) (types.Position, error) {
	if pos == types.PositionDefault {
		if m.opts.Sorted() {
			return types.SortedSibling, nil
		}
		return types.LastSibling, nil
	}
	if !containsPosition(types.SiblingPositions, pos) {
		return "", fmt.Errorf("%w: %q is not a sibling position", types.ErrInvalidPosition, string(pos))
	}
	if m.opts.Sorted() && pos != types.SortedSibling {
		return "", fmt.Errorf("%w: siblings are ordered by %v, use %s", types.ErrInvalidPosition, m.opts.OrderBy, types.SortedSibling)
	}
	if !m.opts.Sorted() && pos == types.SortedSibling {
		return "", fmt.Errorf("%w: %s needs order by fields", types.ErrInvalidPosition, pos)
	}
	return pos, nil
}

func (m *Manager) processMovePos(pos types.Position) (types.Position, error) {
	if pos == types.PositionDefault {
		if m.opts.Sorted() {
			return types.SortedSibling, nil
		}
		return types.LastSibling, nil
	}
	if !containsPosition(types.MovePositions, pos) {
		return "", fmt.Errorf("%w: %q is not a move position", types.ErrInvalidPosition, string(pos))
	}
	if m.opts.Sorted() && !pos.IsSorted() {
		return "", fmt.Errorf("%w: siblings are ordered by %v, use %s or %s",
			types.ErrInvalidPosition, m.opts.OrderBy, types.SortedSibling, types.SortedChild)
	}
	if !m.opts.Sorted() && pos.IsSorted() {
		return "", fmt.Errorf("%w: %s needs order by fields", types.ErrInvalidPosition, pos)
	}
	return pos, nil
}

func containsPosition(positions []types.Position, pos types.Position) bool {
	for _, p := range positions {
		if p == pos {
			return true
		}
	}
	return false
}
