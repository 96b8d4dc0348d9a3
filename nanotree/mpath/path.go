package mpath

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotree/types"
)

// Depth returns the number of steps in path.
func (c *Codec) Depth(path string) int {
	return len(path) / c.step
}

// Validate checks that path is a whole number of steps and every step
// decodes.
func (c *Codec) Validate(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", types.ErrInvalidPath)
	}
	if len(path)%c.step != 0 {
		return fmt.Errorf("%w: %q is not a multiple of step length %d", types.ErrInvalidPath, path, c.step)
	}
	for i := 0; i < len(path); i += c.step {
		if _, err := c.DecodeStep(path[i : i+c.step]); err != nil {
			return err
		}
	}
	return nil
}

// BasePath returns the first depth steps of path. It returns "" when path
// is empty or depth is not positive.
func (c *Codec) BasePath(path string, depth int) string {
	if path == "" || depth <= 0 {
		return ""
	}
	n := depth * c.step
	if n >= len(path) {
		return path
	}
	return path[:n]
}

// BuildPath appends the step for ordinal to parentBase.
func (c *Codec) BuildPath(parentBase string, ordinal int64) (string, error) {
	key, err := c.EncodeStep(ordinal)
	if err != nil {
		if oe, ok := err.(*types.OverflowError); ok {
			oe.Path = parentBase
		}
		return "", err
	}
	return parentBase + key, nil
}

// Increment returns the path of the slot right after path, at the same
// depth.
func (c *Codec) Increment(path string) (string, error) {
	last, err := c.LastStep(path)
	if err != nil {
		return "", err
	}
	if last >= c.max {
		return "", &types.OverflowError{Path: path, Ordinal: last + 1, Max: c.max}
	}
	return c.BuildPath(c.ParentPath(path), last+1)
}

// Decrement returns the path one slot before path in the same level.
func (c *Codec) Decrement(path string) (string, error) {
	last, err := c.LastStep(path)
	if err != nil {
		return "", err
	}
	if last <= 1 {
		return "", fmt.Errorf("%w: %q is the first slot of its level", types.ErrInvalidPath, path)
	}
	return c.BuildPath(c.ParentPath(path), last-1)
}

// ScratchPath returns a path under parentBase that no encoded step can
// collide with. It holds a subtree while its level is renumbered.
func (c *Codec) ScratchPath(parentBase string) string {
	// Alphabets are printable ASCII, so a space is always free
	b := byte('~')
	for b > ' ' && strings.IndexByte(c.alphabet, b) >= 0 {
		b--
	}
	return parentBase + strings.Repeat(string(b), c.step)
}

// LastStep decodes the final step of path.
func (c *Codec) LastStep(path string) (int64, error) {
	if len(path) < c.step {
		return 0, fmt.Errorf("%w: %q is shorter than one step", types.ErrInvalidPath, path)
	}
	return c.DecodeStep(path[len(path)-c.step:])
}

// ParentPath drops the final step. Roots have parent path "".
func (c *Codec) ParentPath(path string) string {
	if len(path) <= c.step {
		return ""
	}
	return path[:len(path)-c.step]
}

// ChildrenInterval returns inclusive bounds covering every immediate child
// path of path.
func (c *Codec) ChildrenInterval(path string) (low, high string) {
	return path + c.lowStep(), path + c.highStep()
}

// AncestorPaths lists the strict prefixes of path, shallowest first.
func (c *Codec) AncestorPaths(path string) []string {
	var paths []string
	for n := c.step; n < len(path); n += c.step {
		paths = append(paths, path[:n])
	}
	return paths
}

// IsParentOf reports whether child is exactly one step below parent.
func (c *Codec) IsParentOf(parent, child string) bool {
	return IsAncestor(parent, child) && len(child) == len(parent)+c.step
}

// IsSibling reports whether a and b share a parent (roots are siblings of
// each other). A path is its own sibling.
func (c *Codec) IsSibling(a, b string) bool {
	return len(a) == len(b) && c.ParentPath(a) == c.ParentPath(b)
}

// IsAncestor reports whether ancestor is a strict prefix of path. This is
// the single definition of ancestry used across the tree: a node is an
// ancestor of another exactly when its path prefixes the other's.
func IsAncestor(ancestor, path string) bool {
	return ancestor != "" && len(path) > len(ancestor) && strings.HasPrefix(path, ancestor)
}

// InSubtree reports whether path is root or one of its descendants.
func InSubtree(root, path string) bool {
	return path == root || IsAncestor(root, path)
}

// Rebase replaces the oldPrefix of path with newPrefix. Paths outside the
// old subtree are returned unchanged.
func Rebase(path, oldPrefix, newPrefix string) string {
	if !InSubtree(oldPrefix, path) {
		return path
	}
	return newPrefix + path[len(oldPrefix):]
}
