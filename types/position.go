package types

import "strings"

// Position names where a node goes relative to an anchor node.
type Position string

const (
	// PositionDefault lets the tree choose: SortedSibling when ordering is
	// configured, LastSibling otherwise
	PositionDefault Position = ""

	FirstSibling  Position = "first-sibling"
	Left          Position = "left"
	Right         Position = "right"
	LastSibling   Position = "last-sibling"
	SortedSibling Position = "sorted-sibling"

	// Child positions are only valid for moves
	FirstChild  Position = "first-child"
	LastChild   Position = "last-child"
	SortedChild Position = "sorted-child"
)

// SiblingPositions are accepted by addSibling.
var SiblingPositions = []Position{FirstSibling, Left, Right, LastSibling, SortedSibling}

// MovePositions are accepted by move.
var MovePositions = []Position{FirstSibling, Left, Right, LastSibling, SortedSibling, FirstChild, LastChild, SortedChild}

// IsChild reports whether the position places a node under the anchor.
func (p Position) IsChild() bool {
	return p == FirstChild || p == LastChild || p == SortedChild
}

// IsSorted reports whether the position is resolved through OrderBy fields.
func (p Position) IsSorted() bool {
	return p == SortedSibling || p == SortedChild
}

// ParsePosition normalizes user input such as "Last_Sibling".
func ParsePosition(s string) Position {
	s = strings.ToLower(strings.TrimSpace(s))
	return Position(strings.ReplaceAll(s, "_", "-"))
}

func (p Position) String() string {
	if p == PositionDefault {
		return "default"
	}
	return string(p)
}
