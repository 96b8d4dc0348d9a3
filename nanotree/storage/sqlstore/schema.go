package sqlstore

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotree/types"
)

// metaTable records the path encoding of every tree table in a database so
// a table is never reopened with a different alphabet or step length.
const metaTable = "nanotree_meta"

// schemaBuilder generates SQL DDL statements from tree options
type schemaBuilder struct {
	opts types.Options
}

func newSchemaBuilder(opts types.Options) *schemaBuilder {
	return &schemaBuilder{opts: opts}
}

// createTable returns the CREATE TABLE statement for the tree table.
// orderBy columns are declared without a type so SQLite compares the
// stored values by storage class, matching query.CompareValues.
func (sb *schemaBuilder) createTable() string {
	o := sb.opts
	cols := []string{
		fmt.Sprintf("%s TEXT PRIMARY KEY", o.IDField),
		fmt.Sprintf("%s TEXT NOT NULL UNIQUE", o.PathField),
		fmt.Sprintf("%s INTEGER NOT NULL CHECK (%s >= 1)", o.DepthField, o.DepthField),
		fmt.Sprintf("%s TEXT", o.ParentIDField),
		fmt.Sprintf("%s INTEGER NOT NULL DEFAULT 0 CHECK (%s >= 0)", o.NumChildrenField, o.NumChildrenField),
		fmt.Sprintf("%s TEXT NOT NULL DEFAULT '{}'", o.DataField),
	}
	cols = append(cols, o.OrderBy...)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", o.Table, strings.Join(cols, ",\n  "))
}

// createMetaTable returns the DDL for the encoding registry.
func (sb *schemaBuilder) createMetaTable() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  tbl TEXT PRIMARY KEY,
  version TEXT NOT NULL,
  alphabet TEXT NOT NULL,
  step_length INTEGER NOT NULL
);`, metaTable)
}

// indexes creates index statements for the structural lookups.
func (sb *schemaBuilder) indexes() []string {
	o := sb.opts
	return []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s, %s);",
			o.Table, o.DepthField, o.Table, o.DepthField, o.PathField),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s);",
			o.Table, o.ParentIDField, o.Table, o.ParentIDField),
	}
}

// expectedColumns returns the set of columns the table must have.
func (sb *schemaBuilder) expectedColumns() []string {
	return append(sb.opts.SemanticFields(), sb.opts.OrderBy...)
}

// missingColumns compares the expected columns with the ones found in the
// database.
func (sb *schemaBuilder) missingColumns(existing map[string]bool) []string {
	var missing []string
	for _, col := range sb.expectedColumns() {
		if !existing[strings.ToLower(col)] {
			missing = append(missing, col)
		}
	}
	return missing
}
