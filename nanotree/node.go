package nanotree

import (
	"context"

	"github.com/arthur-debert/nanotree/nanotree/mpath"
	"github.com/arthur-debert/nanotree/types"
)

// Node is a stored record bound to its tree.
//
// A Node holds the record as of its last load. Mutations made through a
// Node refresh it and the other nodes passed to the call; any other Node
// value may go stale and can be brought up to date with Refresh.
type Node struct {
	m      *Manager
	rec    *types.Record
	parent *Node
}

// Record returns a copy of the node's record.
func (n *Node) Record() *types.Record { return n.rec.Clone() }

func (n *Node) ID() string        { return n.rec.ID }
func (n *Node) Path() string      { return n.rec.Path }
func (n *Node) Depth() int        { return n.rec.Depth }
func (n *Node) ParentID() string  { return n.rec.ParentID }
func (n *Node) NumChildren() int  { return n.rec.NumChildren }
func (n *Node) Manager() *Manager { return n.m }

// Get returns a payload field.
func (n *Node) Get(field string) (interface{}, bool) {
	return n.rec.Get(field)
}

func (n *Node) String() string {
	return n.rec.Path + " " + n.rec.ID
}

// Refresh reloads the node by id.
func (n *Node) Refresh() error {
	rec, err := n.m.backend.SelectByID(n.rec.ID)
	if err != nil {
		return err
	}
	if rec.ParentID != n.rec.ParentID {
		n.parent = nil
	}
	n.rec = rec
	return nil
}

func (n *Node) IsRoot() bool      { return n.rec.ParentID == "" }
func (n *Node) HasParent() bool   { return !n.IsRoot() }
func (n *Node) IsLeaf() bool      { return n.rec.NumChildren == 0 }
func (n *Node) HasChildren() bool { return !n.IsLeaf() }

// IsSiblingOf reports whether both nodes share a parent. A node is its own
// sibling.
func (n *Node) IsSiblingOf(other *Node) bool {
	return n.m.codec.IsSibling(n.rec.Path, other.rec.Path)
}

// IsChildOf reports whether other is the parent of n.
func (n *Node) IsChildOf(other *Node) bool {
	return n.m.codec.IsParentOf(other.rec.Path, n.rec.Path)
}

// IsDescendantOf reports whether other is a strict ancestor of n.
func (n *Node) IsDescendantOf(other *Node) bool {
	return mpath.IsAncestor(other.rec.Path, n.rec.Path)
}

// Parent returns the parent node, or nil for a root. The parent is cached
// after the first lookup unless refresh is set.
func (n *Node) Parent(refresh bool) (*Node, error) {
	if n.IsRoot() {
		return nil, nil
	}
	if n.parent != nil && !refresh {
		return n.parent, nil
	}
	rec, err := n.m.backend.SelectByPath(n.m.codec.ParentPath(n.rec.Path))
	if err != nil {
		return nil, err
	}
	n.parent = &Node{m: n.m, rec: rec}
	return n.parent, nil
}

// Root returns the root of the node's tree, which is n itself for a root.
func (n *Node) Root() (*Node, error) {
	if n.IsRoot() {
		return n, nil
	}
	rec, err := n.m.backend.SelectByPath(n.m.codec.BasePath(n.rec.Path, 1))
	if err != nil {
		return nil, err
	}
	return &Node{m: n.m, rec: rec}, nil
}

// Children returns the immediate children in order.
func (n *Node) Children() ([]*Node, error) {
	if n.IsLeaf() {
		return nil, nil
	}
	recs, err := n.m.backend.Select(n.m.planner.Children(n.rec.Path))
	if err != nil {
		return nil, err
	}
	return n.m.nodes(recs), nil
}

// NumberOfChildren counts the children in storage rather than trusting the
// cached counter.
func (n *Node) NumberOfChildren() (int, error) {
	return n.m.backend.Count(n.m.planner.Children(n.rec.Path))
}

func (n *Node) FirstChild() (*Node, error) {
	if n.IsLeaf() {
		return nil, nil
	}
	return n.m.selectNode(n.m.planner.FirstInLevel(n.rec.Path))
}

func (n *Node) LastChild() (*Node, error) {
	if n.IsLeaf() {
		return nil, nil
	}
	return n.m.selectNode(n.m.planner.LastInLevel(n.rec.Path))
}

// Siblings returns the nodes sharing n's parent, n included, in order.
func (n *Node) Siblings() ([]*Node, error) {
	recs, err := n.m.backend.Select(n.m.planner.Siblings(n.rec.Path))
	if err != nil {
		return nil, err
	}
	return n.m.nodes(recs), nil
}

func (n *Node) FirstSibling() (*Node, error) {
	return n.m.selectNode(n.m.planner.FirstInLevel(n.m.codec.ParentPath(n.rec.Path)))
}

func (n *Node) LastSibling() (*Node, error) {
	return n.m.selectNode(n.m.planner.LastInLevel(n.m.codec.ParentPath(n.rec.Path)))
}

// NextSibling returns the sibling right after n, or nil.
func (n *Node) NextSibling() (*Node, error) {
	return n.m.selectNode(n.m.planner.NextSibling(n.rec.Path))
}

// PrevSibling returns the sibling right before n, or nil.
func (n *Node) PrevSibling() (*Node, error) {
	return n.m.selectNode(n.m.planner.PrevSibling(n.rec.Path))
}

// Ancestors returns the chain from the root down to n's parent.
func (n *Node) Ancestors() ([]*Node, error) {
	if n.IsRoot() {
		return nil, nil
	}
	recs, err := n.m.backend.Select(n.m.planner.Ancestors(n.rec.Path))
	if err != nil {
		return nil, err
	}
	return n.m.nodes(recs), nil
}

// Descendants returns the subtree below n in depth first order.
func (n *Node) Descendants() ([]*Node, error) {
	if n.IsLeaf() {
		return nil, nil
	}
	recs, err := n.m.backend.Select(n.m.planner.Descendants(n.rec.Path))
	if err != nil {
		return nil, err
	}
	return n.m.nodes(recs), nil
}

func (n *Node) NumberOfDescendants() (int, error) {
	if n.IsLeaf() {
		return 0, nil
	}
	return n.m.backend.Count(n.m.planner.Descendants(n.rec.Path))
}

// Delete removes n and its subtree.
func (n *Node) Delete(ctx context.Context) error {
	return n.m.Delete(ctx, n)
}
