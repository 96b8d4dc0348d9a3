package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/nanotree/nanotree"
	"github.com/arthur-debert/nanotree/nanotree/render"
)

func (cli *CLI) addExportCommand() {
	cmd := &cobra.Command{
		Use:   "export <file> [path]",
		Short: "Write the tree, or the subtree at path, to a file",
		Long: `Write nodes to a file in the format its extension names:
.json, .yaml, .txt (indented outline) or .md (nested list).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			format, err := render.ByExtension(filepath.Ext(file))
			if err != nil {
				return NewValidationError("export", "file", file, "Use a .json, .yaml, .txt or .md file")
			}

			nodes, err := cli.exportNodes(args[1:])
			if err != nil {
				return err
			}

			f, err := os.Create(file)
			if err != nil {
				return &CLIError{Operation: "export", Cause: "cannot create file", Details: err.Error(), Underlying: err}
			}
			if err := format.Render(f, render.Views(nodes)); err != nil {
				_ = f.Close()
				return &CLIError{Operation: "export", Cause: "cannot write file", Details: err.Error(), Underlying: err}
			}
			if err := f.Close(); err != nil {
				return &CLIError{Operation: "export", Cause: "cannot write file", Details: err.Error(), Underlying: err}
			}
			fmt.Fprintf(cli.out, "exported %d node(s) to %s\n", len(nodes), file)
			return nil
		},
	}
	cli.rootCmd.AddCommand(cmd)
}

// exportNodes is the whole tree, or the subtree at the optional path.
func (cli *CLI) exportNodes(args []string) ([]*nanotree.Node, error) {
	if len(args) == 0 {
		nodes, err := cli.tree.All()
		if err != nil {
			return nil, NewTreeError("export", err)
		}
		return nodes, nil
	}
	n, err := cli.node("export", args[0])
	if err != nil {
		return nil, err
	}
	descendants, err := n.Descendants()
	if err != nil {
		return nil, NewTreeError("export", err)
	}
	return append([]*nanotree.Node{n}, descendants...), nil
}

func (cli *CLI) addImportCommand() {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add the nodes of an outline file",
		Long: `Add the nodes of an indented outline (.txt) or nested markdown list
(.md), two spaces per level. Top level lines become roots, or children of
the node at --under.

Example file:
  Groceries
    Milk
    Bread`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			name, _ := cmd.Flags().GetString("as")
			var (
				format *render.Format
				err    error
			)
			if name != "" {
				format, err = render.Get(name)
			} else {
				format, err = render.ByExtension(filepath.Ext(file))
			}
			if err != nil || format.Parse == nil {
				return NewValidationError("import", "file", file, "Import .txt outlines or .md lists, or pick one with --as outline|markdown")
			}

			var under *nanotree.Node
			if path, _ := cmd.Flags().GetString("under"); path != "" {
				if under, err = cli.node("import", path); err != nil {
					return err
				}
			}

			f, err := os.Open(file)
			if err != nil {
				return &CLIError{Operation: "import", Cause: "cannot open file", Details: err.Error(), Underlying: err}
			}
			defer func() { _ = f.Close() }()
			entries, err := format.Parse(f)
			if err != nil {
				return &CLIError{Operation: "import", Cause: "cannot parse " + file, Details: err.Error(), Underlying: err}
			}

			created, err := render.Import(cmd.Context(), cli.tree, under, entries)
			if err != nil {
				e := NewTreeError("import", err)
				e.Suggestions = append(e.Suggestions, fmt.Sprintf("%d node(s) were added before the failure", len(created)))
				return e
			}
			fmt.Fprintf(cli.out, "imported %d node(s)\n", len(created))
			return nil
		},
	}
	cmd.Flags().String("under", "", "Path of the node to import under")
	cmd.Flags().String("as", "", "Outline format (outline|markdown), default by extension")
	cli.rootCmd.AddCommand(cmd)
}
