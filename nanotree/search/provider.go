package search

import "github.com/arthur-debert/nanotree/nanotree"

// TreeProvider serves a whole tree, or the subtree under Root.
type TreeProvider struct {
	Manager *nanotree.Manager
	Root    *nanotree.Node
}

// Nodes implements NodeProvider. Root itself is part of its subtree.
func (p TreeProvider) Nodes() ([]*nanotree.Node, error) {
	if p.Root == nil {
		return p.Manager.All()
	}
	descendants, err := p.Root.Descendants()
	if err != nil {
		return nil, err
	}
	return append([]*nanotree.Node{p.Root}, descendants...), nil
}

// Tree searches every node of m.
func Tree(m *nanotree.Manager, opts Options) ([]Result, error) {
	return NewEngine(TreeProvider{Manager: m}).Search(opts)
}

// Subtree searches root and its descendants.
func Subtree(root *nanotree.Node, opts Options) ([]Result, error) {
	return NewEngine(TreeProvider{Manager: root.Manager(), Root: root}).Search(opts)
}
