// Package render writes nodes as text and reads indented outlines back.
//
// Formats are kept in a registry by name. Every format renders; outline
// based formats also parse, which is what tree imports use.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/arthur-debert/nanotree/nanotree"
)

// TitleField is the payload field shown as a node's label.
const TitleField = "title"

// View is the serialized form of a node.
type View struct {
	ID          string                 `json:"id" yaml:"id"`
	Path        string                 `json:"path" yaml:"path"`
	Depth       int                    `json:"depth" yaml:"depth"`
	ParentID    string                 `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	NumChildren int                    `json:"num_children" yaml:"num_children"`
	Data        map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}

// ViewOf snapshots a node.
func ViewOf(n *nanotree.Node) View {
	rec := n.Record()
	return View{
		ID:          rec.ID,
		Path:        rec.Path,
		Depth:       rec.Depth,
		ParentID:    rec.ParentID,
		NumChildren: rec.NumChildren,
		Data:        rec.Data,
	}
}

// Views snapshots nodes in order.
func Views(nodes []*nanotree.Node) []View {
	views := make([]View, len(nodes))
	for i, n := range nodes {
		views[i] = ViewOf(n)
	}
	return views
}

// Title returns the node's title, or its path when it has none.
func (v View) Title() string {
	if title, ok := v.Data[TitleField]; ok && title != nil {
		return fmt.Sprint(title)
	}
	return v.Path
}

// Entry is one line of a parsed outline. Depth starts at 1.
type Entry struct {
	Depth int
	Title string
}

// Format defines how nodes are written and, optionally, read back.
type Format struct {
	// Name is the format identifier (lowercase alphanumeric, dashes, underscores)
	Name string

	// Extension is the file extension including the dot, empty when the
	// format is not meant for files
	Extension string

	// Render writes views in order
	Render func(w io.Writer, views []View) error

	// Parse reads an outline; nil when the format cannot be read
	Parse func(r io.Reader) ([]Entry, error)
}

// registry holds all available formats
var registry = make(map[string]*Format)

// Register adds a new format to the registry
func Register(format *Format) error {
	if !isValidFormatName(format.Name) {
		return fmt.Errorf("invalid format name %q: must be lowercase alphanumeric with dashes and underscores only", format.Name)
	}
	if format.Render == nil {
		return fmt.Errorf("format %q cannot render", format.Name)
	}
	if format.Extension != "" && !strings.HasPrefix(format.Extension, ".") {
		format.Extension = "." + format.Extension
	}
	if _, exists := registry[format.Name]; exists {
		return fmt.Errorf("format %q already registered", format.Name)
	}
	registry[format.Name] = format
	return nil
}

// Get returns a format by name
func Get(name string) (*Format, error) {
	format, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown format %q (available: %s)", name, strings.Join(List(), ", "))
	}
	return format, nil
}

// ByExtension returns the format writing files with ext, e.g. ".md".
func ByExtension(ext string) (*Format, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	for _, name := range List() {
		if f := registry[name]; f.Extension != "" && f.Extension == ext {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no format for extension %q", ext)
}

// List returns all registered format names, sorted
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isValidFormatName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func mustRegister(format *Format) {
	if err := Register(format); err != nil {
		panic(fmt.Sprintf("failed to register %s format: %v", format.Name, err))
	}
}

// baseDepth is the smallest depth in views, so output starts at the left
// margin whatever level it was taken from.
func baseDepth(views []View) int {
	if len(views) == 0 {
		return 0
	}
	base := views[0].Depth
	for _, v := range views {
		if v.Depth < base {
			base = v.Depth
		}
	}
	return base
}
