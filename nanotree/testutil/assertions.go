package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanotree/nanotree"
)

// AssertInvariants fails the test when the stored tree is inconsistent.
func AssertInvariants(t *testing.T, m *nanotree.Manager) {
	t.Helper()
	if err := m.Check(); err != nil {
		t.Fatalf("tree invariants violated:\n%v\ntree:\n%s", err, Outline(t, m))
	}
}

// Title returns the fixture title of a node.
func Title(n *nanotree.Node) string {
	v, _ := n.Get(TitleField)
	return fmt.Sprint(v)
}

// Titles maps nodes to their titles.
func Titles(nodes []*nanotree.Node) []string {
	titles := make([]string, len(nodes))
	for i, n := range nodes {
		titles[i] = Title(n)
	}
	return titles
}

// Paths maps nodes to their paths.
func Paths(nodes []*nanotree.Node) []string {
	paths := make([]string, len(nodes))
	for i, n := range nodes {
		paths[i] = n.Path()
	}
	return paths
}

// Outline renders the whole tree in the format Build reads.
func Outline(t *testing.T, m *nanotree.Manager) string {
	t.Helper()
	nodes, err := m.All()
	if err != nil {
		t.Fatalf("failed to list tree: %v", err)
	}
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(strings.Repeat("  ", n.Depth()-1))
		b.WriteString(Title(n))
		b.WriteByte('\n')
	}
	return b.String()
}

// AssertOutline compares the tree against an outline, ignoring blank lines
// and the outline's common indentation.
func AssertOutline(t *testing.T, m *nanotree.Manager, want string) {
	t.Helper()
	if diff := cmp.Diff(normalizeOutline(want), Outline(t, m)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func normalizeOutline(s string) string {
	var lines []string
	margin := -1
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if margin < 0 || indent < margin {
			margin = indent
		}
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line[margin:])
		b.WriteByte('\n')
	}
	return b.String()
}
