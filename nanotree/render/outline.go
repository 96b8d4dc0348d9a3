package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// indentUnit is one level of outline nesting.
const indentUnit = "  "

// Outline is plain text, one title per line, nested two spaces per level:
//
//	Groceries
//	  Milk
//	  Bread
var Outline = &Format{
	Name:      "outline",
	Extension: ".txt",
	Render: func(w io.Writer, views []View) error {
		return writeNested(w, views, "")
	},
	Parse: func(r io.Reader) ([]Entry, error) {
		return parseNested(r, func(line string) (string, bool) { return line, true })
	},
}

// Markdown is a nested bullet list:
//
//	- Groceries
//	  - Milk
var Markdown = &Format{
	Name:      "markdown",
	Extension: ".md",
	Render: func(w io.Writer, views []View) error {
		return writeNested(w, views, "- ")
	},
	Parse: func(r io.Reader) ([]Entry, error) {
		return parseNested(r, func(line string) (string, bool) {
			for _, bullet := range []string{"- ", "* ", "+ "} {
				if strings.HasPrefix(line, bullet) {
					return strings.TrimPrefix(line, bullet), true
				}
			}
			return "", false
		})
	},
}

func writeNested(w io.Writer, views []View, marker string) error {
	bw := bufio.NewWriter(w)
	base := baseDepth(views)
	for _, v := range views {
		bw.WriteString(strings.Repeat(indentUnit, v.Depth-base))
		bw.WriteString(marker)
		bw.WriteString(v.Title())
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// parseNested reads indented lines. item strips the line marker and
// reports whether the line is an item at all. A line may nest at most one
// level deeper than the one before it.
func parseNested(r io.Reader, item func(line string) (string, bool)) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if isBlankLine(line) {
			continue
		}
		if strings.HasPrefix(line, "\t") {
			return nil, fmt.Errorf("line %d: indent with spaces, not tabs", lineNo)
		}

		trimmed := strings.TrimLeft(line, " ")
		indent := len(line) - len(trimmed)
		if indent%len(indentUnit) != 0 {
			return nil, fmt.Errorf("line %d: indentation of %d spaces is not a multiple of %d", lineNo, indent, len(indentUnit))
		}
		depth := indent/len(indentUnit) + 1

		title, ok := item(trimmed)
		if !ok {
			return nil, fmt.Errorf("line %d: expected a list item, got %q", lineNo, trimmed)
		}
		title = strings.TrimSpace(title)
		if title == "" {
			return nil, fmt.Errorf("line %d: empty title", lineNo)
		}

		prev := 0
		if len(entries) > 0 {
			prev = entries[len(entries)-1].Depth
		}
		if depth > prev+1 {
			return nil, fmt.Errorf("line %d: nested more than one level below the previous line", lineNo)
		}
		entries = append(entries, Entry{Depth: depth, Title: title})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func isBlankLine(line string) bool {
	return strings.TrimSpace(line) == ""
}

func init() {
	mustRegister(Outline)
	mustRegister(Markdown)
}
