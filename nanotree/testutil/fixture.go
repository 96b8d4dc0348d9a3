// Package testutil builds trees for tests and checks them.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthur-debert/nanotree/nanotree"
	"github.com/arthur-debert/nanotree/nanotree/storage"
	"github.com/arthur-debert/nanotree/nanotree/storage/jsonstore"
	"github.com/arthur-debert/nanotree/nanotree/storage/sqlstore"
	"github.com/arthur-debert/nanotree/types"
)

// TitleField is the payload field fixtures name their nodes with.
const TitleField = "title"

// Opener creates an empty tree for a test.
type Opener func(t *testing.T, opts types.Options) *nanotree.Manager

// Backends lists the openers a tree test should run against.
var Backends = map[string]Opener{
	"memory": NewMemoryManager,
	"json":   NewJSONManager,
	"sqlite": NewSQLiteManager,
}

// ForEachBackend runs fn once per backend as a subtest.
func ForEachBackend(t *testing.T, fn func(t *testing.T, open Opener)) {
	for _, name := range []string{"memory", "json", "sqlite"} {
		open := Backends[name]
		t.Run(name, func(t *testing.T) { fn(t, open) })
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewMemoryManager creates a tree held in memory.
func NewMemoryManager(t *testing.T, opts types.Options) *nanotree.Manager {
	t.Helper()
	s, err := jsonstore.NewMemory(opts)
	if err != nil {
		t.Fatalf("failed to create memory store: %v", err)
	}
	return newManager(t, s)
}

// NewJSONManager creates a tree in a JSON file under t.TempDir.
func NewJSONManager(t *testing.T, opts types.Options) *nanotree.Manager {
	t.Helper()
	s, err := jsonstore.Open(filepath.Join(t.TempDir(), "tree.json"), opts)
	if err != nil {
		t.Fatalf("failed to open json store: %v", err)
	}
	return newManager(t, s)
}

// NewSQLiteManager creates a tree in a SQLite database under t.TempDir.
func NewSQLiteManager(t *testing.T, opts types.Options) *nanotree.Manager {
	t.Helper()
	s, err := sqlstore.Open(filepath.Join(t.TempDir(), "tree.db"), opts)
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	return newManager(t, s)
}

func newManager(t *testing.T, s storage.Backend) *nanotree.Manager {
	t.Helper()
	m, err := nanotree.New(s, nanotree.WithLogger(quietLogger()))
	if err != nil {
		_ = s.Close()
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// Titled returns an unsaved record with a title.
func Titled(title string) *types.Record {
	return types.NewRecord(map[string]interface{}{TitleField: title})
}

// Build adds the nodes of an outline to m and returns them by title. Each
// line is a title, indented two spaces per level past the outline's margin:
//
//	a
//	  a1
//	  a2
//	b
func Build(t *testing.T, m *nanotree.Manager, outline string) map[string]*nanotree.Node {
	t.Helper()
	ctx := context.Background()
	nodes := make(map[string]*nanotree.Node)
	var stack []*nanotree.Node

	for _, line := range strings.Split(normalizeOutline(outline), "\n") {
		if line == "" {
			continue
		}
		title := strings.TrimSpace(line)
		level := (len(line) - len(strings.TrimLeft(line, " "))) / 2
		if level > len(stack) {
			t.Fatalf("outline line %q is indented too deep", line)
		}
		stack = stack[:level]

		var (
			n   *nanotree.Node
			err error
		)
		if level == 0 {
			n, err = m.AddRoot(ctx, Titled(title))
		} else {
			n, err = stack[level-1].AddChild(ctx, Titled(title))
		}
		if err != nil {
			t.Fatalf("failed to add %q: %v", title, err)
		}
		nodes[title] = n
		stack = append(stack, n)
	}
	return nodes
}
