// Package query turns structural tree questions into storage queries.
//
// A Query is a conjunction of path predicates. Backends either translate it
// to SQL (Where, ApplyTo) or evaluate it against records in memory (Matches,
// Run). Zero-valued fields do not constrain.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arthur-debert/nanotree/types"
)

// Order is the path ordering of a result set.
type Order int

const (
	Unordered Order = iota
	Ascending
	Descending
)

func (o Order) String() string {
	switch o {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return "none"
	}
}

// Tuple is a bound on the orderBy fields of a row.
type Tuple struct {
	Fields []string
	Values []interface{}
}

// Query selects rows by path predicates.
type Query struct {
	// Empty matches nothing, for questions answered without storage
	Empty bool

	Path  string   // path equals
	Paths []string // path is one of
	Depth int      // depth equals

	// Prefix matches the prefix row itself and its whole subtree
	Prefix  string
	Exclude string // path differs

	From    string // path >= From
	Through string // path <= Through
	After   string // path > After
	Before  string // path < Before

	// Greater keeps rows whose orderBy tuple is strictly greater, comparing
	// field by field
	Greater *Tuple

	Order Order
	Limit int
}

// Matches evaluates the predicates against one record.
func (q Query) Matches(r *types.Record) bool {
	if q.Empty || r == nil {
		return false
	}
	p := r.Path
	if q.Path != "" && p != q.Path {
		return false
	}
	if len(q.Paths) > 0 && !containsString(q.Paths, p) {
		return false
	}
	if q.Depth > 0 && r.Depth != q.Depth {
		return false
	}
	if q.Prefix != "" && !strings.HasPrefix(p, q.Prefix) {
		return false
	}
	if q.Exclude != "" && p == q.Exclude {
		return false
	}
	if q.From != "" && p < q.From {
		return false
	}
	if q.Through != "" && p > q.Through {
		return false
	}
	if q.After != "" && p <= q.After {
		return false
	}
	if q.Before != "" && p >= q.Before {
		return false
	}
	if q.Greater != nil && CompareTuple(r.OrderTuple(q.Greater.Fields), q.Greater.Values) <= 0 {
		return false
	}
	return true
}

// Run filters, orders and limits records in memory. The input slice is not
// modified; matching records are returned as-is, not copied.
func (q Query) Run(records []*types.Record) []*types.Record {
	if q.Empty {
		return nil
	}
	var out []*types.Record
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	switch q.Order {
	case Ascending:
		sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	case Descending:
		sort.Slice(out, func(i, j int) bool { return out[i].Path > out[j].Path })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// WithOrder returns a copy of q with the given order and limit.
func (q Query) WithOrder(order Order, limit int) Query {
	q.Order = order
	q.Limit = limit
	return q
}

// String renders the query for logs.
func (q Query) String() string {
	if q.Empty {
		return "none"
	}
	var parts []string
	add := func(format string, args ...interface{}) {
		parts = append(parts, fmt.Sprintf(format, args...))
	}
	if q.Path != "" {
		add("path=%s", q.Path)
	}
	if len(q.Paths) > 0 {
		add("path in %v", q.Paths)
	}
	if q.Depth > 0 {
		add("depth=%d", q.Depth)
	}
	if q.Prefix != "" {
		add("prefix=%s", q.Prefix)
	}
	if q.Exclude != "" {
		add("path!=%s", q.Exclude)
	}
	if q.From != "" {
		add("path>=%s", q.From)
	}
	if q.Through != "" {
		add("path<=%s", q.Through)
	}
	if q.After != "" {
		add("path>%s", q.After)
	}
	if q.Before != "" {
		add("path<%s", q.Before)
	}
	if q.Greater != nil {
		add("(%s)>%v", strings.Join(q.Greater.Fields, ","), q.Greater.Values)
	}
	if q.Order != Unordered {
		add("order=%s", q.Order)
	}
	if q.Limit > 0 {
		add("limit=%d", q.Limit)
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
