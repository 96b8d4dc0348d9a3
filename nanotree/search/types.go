// Package search finds nodes by the text of their payload fields.
package search

import "github.com/arthur-debert/nanotree/nanotree"

// Options configures search behavior
type Options struct {
	// Query is the text to look for
	Query string

	// Fields limits the payload fields searched; empty searches all of them
	Fields []string

	// CaseSensitive controls whether search is case-sensitive
	CaseSensitive bool

	// ExactMatch requires the entire field to match the query
	ExactMatch bool

	// Highlight fills Result.Highlights, wrapping matches in the markers
	// (default "**")
	Highlight   bool
	StartMarker string
	EndMarker   string

	// MaxResults limits the number of results; 0 means no limit
	MaxResults int
}

// Result is a matching node with its relevance.
type Result struct {
	Node *nanotree.Node

	// Score is between 0 and 1, higher is better
	Score float64

	// MatchType describes the best match
	MatchType MatchType

	// MatchedFields lists the fields that matched, in search order
	MatchedFields []string

	// Highlights maps a matched field to its text with markers around the
	// matches
	Highlights map[string]string
}

// MatchType indicates the type of match found
type MatchType string

const (
	MatchExactTitle   MatchType = "exact_title"
	MatchPartialTitle MatchType = "partial_title"
	MatchExactField   MatchType = "exact_field"
	MatchPartialField MatchType = "partial_field"
)

// NodeProvider supplies the nodes to search, in tree order.
type NodeProvider interface {
	Nodes() ([]*nanotree.Node, error)
}
