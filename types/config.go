package types

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DefaultAlphabet is the 36 symbol digit set used for path steps.
const DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultStepLength is the number of symbols per path step.
const DefaultStepLength = 4

// Options configures one tree-enabled record kind: where the semantic
// columns live and how paths are encoded.
type Options struct {
	// Table is the table (or collection) holding the rows
	Table string `yaml:"table"`

	IDField          string `yaml:"id_field"`
	PathField        string `yaml:"path_field"`
	ParentIDField    string `yaml:"parent_id_field"`
	DepthField       string `yaml:"depth_field"`
	NumChildrenField string `yaml:"num_children_field"`

	// DataField holds the serialized payload
	DataField string `yaml:"data_field"`

	// OrderBy lists payload fields defining sibling order. When set, all
	// insertions and moves must use the sorted positions.
	OrderBy []string `yaml:"order_by"`

	// Alphabet is the ordered digit set for path steps. Symbols must be
	// single bytes in ascending order.
	Alphabet string `yaml:"alphabet"`

	// StepLength is the fixed width of one path step
	StepLength int `yaml:"step_length"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Table:            "nodes",
		IDField:          "id",
		PathField:        "path",
		ParentIDField:    "parent_id",
		DepthField:       "depth",
		NumChildrenField: "numchild",
		DataField:        "data",
		Alphabet:         DefaultAlphabet,
		StepLength:       DefaultStepLength,
	}
}

// WithDefaults fills every unset field from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Table == "" {
		o.Table = d.Table
	}
	if o.IDField == "" {
		o.IDField = d.IDField
	}
	if o.PathField == "" {
		o.PathField = d.PathField
	}
	if o.ParentIDField == "" {
		o.ParentIDField = d.ParentIDField
	}
	if o.DepthField == "" {
		o.DepthField = d.DepthField
	}
	if o.NumChildrenField == "" {
		o.NumChildrenField = d.NumChildrenField
	}
	if o.DataField == "" {
		o.DataField = d.DataField
	}
	if o.Alphabet == "" {
		o.Alphabet = d.Alphabet
	}
	if o.StepLength == 0 {
		o.StepLength = d.StepLength
	}
	return o
}

// Sorted reports whether sibling order is driven by OrderBy fields.
func (o Options) Sorted() bool {
	return len(o.OrderBy) > 0
}

// SemanticFields returns the column names the tree itself manages.
func (o Options) SemanticFields() []string {
	return []string{o.IDField, o.PathField, o.ParentIDField, o.DepthField, o.NumChildrenField, o.DataField}
}

// LoadOptions decodes YAML options, applying defaults for missing keys.
func LoadOptions(r io.Reader) (Options, error) {
	var opts Options
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && err != io.EOF {
		return Options{}, fmt.Errorf("%w: failed to parse options: %v", ErrInvalidConfig, err)
	}
	return opts.WithDefaults(), nil
}
