package query

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotree/nanotree/mpath"
	"github.com/arthur-debert/nanotree/types"
)

// Op is one planned write. Ops are plain values; the tree executes them in
// order inside a single transaction.
type Op interface {
	// Kind names the op for logs and metrics
	Kind() string
	String() string
}

// InsertOp stores a new row. Storage assigns Record.ID.
type InsertOp struct {
	Record *types.Record
}

// AdjustChildrenOp adds Delta to the child counter of the row at Path.
type AdjustChildrenOp struct {
	Path  string
	Delta int
}

// SetParentOp points the row at Path to a new parent.
type SetParentOp struct {
	Path     string
	ParentID string
}

// RewritePrefixOp moves the subtree rooted at Old to New, recomputing
// depths.
type RewritePrefixOp struct {
	Old string
	New string
}

// DeleteSubtreeOp removes the row at Prefix and everything below it.
type DeleteSubtreeOp struct {
	Prefix string
}

func (InsertOp) Kind() string         { return "insert" }
func (AdjustChildrenOp) Kind() string { return "adjust_children" }
func (SetParentOp) Kind() string      { return "set_parent" }
func (RewritePrefixOp) Kind() string  { return "rewrite_prefix" }
func (DeleteSubtreeOp) Kind() string  { return "delete_subtree" }

func (o InsertOp) String() string {
	return fmt.Sprintf("insert %s (depth %d)", o.Record.Path, o.Record.Depth)
}

func (o AdjustChildrenOp) String() string {
	return fmt.Sprintf("numchild %s %+d", o.Path, o.Delta)
}

func (o SetParentOp) String() string {
	parent := o.ParentID
	if parent == "" {
		parent = "<root>"
	}
	return fmt.Sprintf("parent %s -> %s", o.Path, parent)
}

func (o RewritePrefixOp) String() string {
	return fmt.Sprintf("rewrite %s* -> %s*", o.Old, o.New)
}

func (o DeleteSubtreeOp) String() string {
	return fmt.Sprintf("delete %s*", o.Prefix)
}

// Plan is an ordered list of writes produced by one mutation.
type Plan struct {
	ops []Op
}

// Add appends ops to the plan.
func (p *Plan) Add(ops ...Op) {
	p.ops = append(p.ops, ops...)
}

// Ops returns the planned ops in execution order.
func (p *Plan) Ops() []Op {
	return p.ops
}

// Len returns the number of planned ops.
func (p *Plan) Len() int {
	return len(p.ops)
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return len(p.ops) == 0
}

// Rebase returns where path ends up after every rewrite in the plan so far.
// Planning uses it to follow rows that a shift has already moved.
func (p *Plan) Rebase(path string) string {
	for _, op := range p.ops {
		if rw, ok := op.(RewritePrefixOp); ok {
			path = mpath.Rebase(path, rw.Old, rw.New)
		}
	}
	return path
}

func (p *Plan) String() string {
	parts := make([]string, len(p.ops))
	for i, op := range p.ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, "; ")
}
