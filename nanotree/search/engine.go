package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arthur-debert/nanotree/nanotree"
)

const titleField = "title"

// Engine searches the nodes of a provider.
type Engine struct {
	provider NodeProvider
}

func NewEngine(provider NodeProvider) *Engine {
	return &Engine{provider: provider}
}

// Search returns matching nodes, best first. Equal scores keep tree order.
func (e *Engine) Search(opts Options) ([]Result, error) {
	if opts.Query == "" {
		return []Result{}, nil
	}
	nodes, err := e.provider.Nodes()
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}
	if opts.StartMarker == "" {
		opts.StartMarker = "**"
	}
	if opts.EndMarker == "" {
		opts.EndMarker = "**"
	}

	results := []Result{}
	for _, n := range nodes {
		if result := e.searchNode(n, opts); result != nil {
			results = append(results, *result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return results, nil
}

func (e *Engine) searchNode(n *nanotree.Node, opts Options) *Result {
	var result *Result
	for _, field := range fieldsOf(n, opts.Fields) {
		value, ok := n.Get(field)
		if !ok || value == nil {
			continue
		}
		text := fmt.Sprint(value)
		score, matchType := e.matchField(field, text, opts)
		if score == 0 {
			continue
		}

		if result == nil {
			result = &Result{Node: n}
			if opts.Highlight {
				result.Highlights = make(map[string]string)
			}
		}
		result.MatchedFields = append(result.MatchedFields, field)
		if score > result.Score {
			result.Score = score
			result.MatchType = matchType
		}
		if opts.Highlight {
			result.Highlights[field] = highlight(text, opts)
		}
	}
	return result
}

// fieldsOf lists the fields to search: the requested ones, or the title
// followed by the other payload fields in name order.
func fieldsOf(n *nanotree.Node, requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	data := n.Record().Data
	fields := make([]string, 0, len(data))
	for field := range data {
		if field != titleField {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	if _, ok := data[titleField]; ok {
		fields = append([]string{titleField}, fields...)
	}
	return fields
}

// matchField scores one field, 0 when it does not match.
func (e *Engine) matchField(field, text string, opts Options) (float64, MatchType) {
	searchText, query := text, opts.Query
	if !opts.CaseSensitive {
		searchText, query = strings.ToLower(text), strings.ToLower(query)
	}

	if opts.ExactMatch {
		if searchText != query {
			return 0, ""
		}
		if field == titleField {
			return 1.0, MatchExactTitle
		}
		return 1.0, MatchExactField
	}

	if !strings.Contains(searchText, query) {
		return 0, ""
	}
	matchType := MatchPartialField
	if field == titleField {
		matchType = MatchPartialTitle
	}
	return calculateScore(field, searchText, query), matchType
}

// calculateScore rates a substring match: titles over other fields, then
// prefix matches, then matches covering most of the text. Points are
// tenths so scores compare exactly.
func calculateScore(field, text, query string) float64 {
	points := 5
	if field == titleField {
		points = 7
	}
	if strings.HasPrefix(text, query) {
		points += 2
	}
	if float64(len(query))/float64(len(text)) > 0.5 {
		points++
	}
	if points > 10 {
		points = 10
	}
	return float64(points) / 10
}

// highlight wraps every non-overlapping match in the markers.
func highlight(text string, opts Options) string {
	searchText, query := text, opts.Query
	if !opts.CaseSensitive {
		searchText, query = strings.ToLower(text), strings.ToLower(query)
	}
	if opts.ExactMatch {
		if searchText != query {
			return text
		}
		return opts.StartMarker + text + opts.EndMarker
	}

	var b strings.Builder
	last := 0
	for i := 0; i <= len(searchText)-len(query); {
		if searchText[i:i+len(query)] != query {
			i++
			continue
		}
		b.WriteString(text[last:i])
		b.WriteString(opts.StartMarker)
		b.WriteString(text[i : i+len(query)])
		b.WriteString(opts.EndMarker)
		i += len(query)
		last = i
	}
	b.WriteString(text[last:])
	return b.String()
}
