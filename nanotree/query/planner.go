package query

import (
	"github.com/arthur-debert/nanotree/nanotree/mpath"
	"github.com/arthur-debert/nanotree/types"
)

// Planner builds the structural queries a tree needs. A level is the set of
// rows sharing one parent, identified by the parent's path ("" for roots).
type Planner struct {
	codec *mpath.Codec
	opts  types.Options
}

// NewPlanner creates a planner for one tree configuration.
func NewPlanner(codec *mpath.Codec, opts types.Options) *Planner {
	return &Planner{codec: codec, opts: opts}
}

// Codec returns the path codec the planner encodes with.
func (p *Planner) Codec() *mpath.Codec { return p.codec }

// ByPath is a point lookup.
func (p *Planner) ByPath(path string) Query {
	return Query{Path: path, Limit: 1}
}

// Level selects the immediate children of parentPath, or the roots when
// parentPath is empty, in path order.
func (p *Planner) Level(parentPath string) Query {
	if parentPath == "" {
		return Query{Depth: 1, Order: Ascending}
	}
	low, high := p.codec.ChildrenInterval(parentPath)
	return Query{
		From:    low,
		Through: high,
		Depth:   p.codec.Depth(parentPath) + 1,
		Order:   Ascending,
	}
}

// Roots selects depth 1 rows.
func (p *Planner) Roots() Query {
	return p.Level("")
}

// Children selects the immediate children of path.
func (p *Planner) Children(path string) Query {
	return p.Level(path)
}

// Siblings selects the level path belongs to, including path itself.
func (p *Planner) Siblings(path string) Query {
	return p.Level(p.codec.ParentPath(path))
}

// FirstInLevel and LastInLevel select the boundary rows of a level.
func (p *Planner) FirstInLevel(parentPath string) Query {
	return p.Level(parentPath).WithOrder(Ascending, 1)
}

func (p *Planner) LastInLevel(parentPath string) Query {
	return p.Level(parentPath).WithOrder(Descending, 1)
}

// NextSibling selects the row right after path in its level.
func (p *Planner) NextSibling(path string) Query {
	q := p.Siblings(path).WithOrder(Ascending, 1)
	q.After = path
	return q
}

// PrevSibling selects the row right before path in its level.
func (p *Planner) PrevSibling(path string) Query {
	q := p.Siblings(path).WithOrder(Descending, 1)
	q.Before = path
	return q
}

// Between selects rows of a level strictly between two paths.
func (p *Planner) Between(parentPath, after, before string) Query {
	q := p.Level(parentPath)
	q.After = after
	q.Before = before
	return q
}

// Ancestors selects the rows whose paths are strict prefixes of path,
// shallowest first.
func (p *Planner) Ancestors(path string) Query {
	paths := p.codec.AncestorPaths(path)
	if len(paths) == 0 {
		return Query{Empty: true}
	}
	return Query{Paths: paths, Order: Ascending}
}

// Descendants selects the subtree below path, excluding path.
func (p *Planner) Descendants(path string) Query {
	return Query{Prefix: path, Exclude: path, Order: Ascending}
}

// Subtree selects path and every row below it.
func (p *Planner) Subtree(path string) Query {
	return Query{Prefix: path, Order: Ascending}
}

// SortedInsertionPoint selects the first row of a level whose orderBy tuple
// is strictly greater than tuple. exclude, when set, is left out so a node
// can be compared against its own level while moving.
func (p *Planner) SortedInsertionPoint(parentPath string, tuple []interface{}, exclude string) Query {
	q := p.Level(parentPath).WithOrder(Ascending, 1)
	q.Greater = &Tuple{Fields: p.opts.OrderBy, Values: tuple}
	q.Exclude = exclude
	return q
}

// ShiftSet selects the rows of a level that must move one slot right so
// that target becomes free, deepest path first.
func (p *Planner) ShiftSet(parentPath, target string) Query {
	q := p.Level(parentPath).WithOrder(Descending, 0)
	q.From = maxString(q.From, target)
	return q
}

// All selects every row in path order.
func (p *Planner) All() Query {
	return Query{Order: Ascending}
}

func maxString(a, b string) string {
	if a > b {
		return a
	}
	return b
}
