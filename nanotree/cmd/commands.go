package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/nanotree/nanotree"
	"github.com/arthur-debert/nanotree/types"
)

// addCommands adds the tree commands
func (cli *CLI) addCommands() {
	cli.addRootCommand()
	cli.addChildCommand()
	cli.addSiblingCommand()
	cli.addMoveCommand()
	cli.addDeleteCommand()
	cli.addListCommand()
	cli.addShowCommand()
	cli.addCheckCommand()
	cli.addFindCommand()
	cli.addExportCommand()
	cli.addImportCommand()
}

// addSetFlag adds --set key=value for payload fields.
func addSetFlag(cmd *cobra.Command) {
	cmd.Flags().StringArray("set", nil, "Payload field as key=value (repeatable)")
}

// newRecord builds a record from a title and the --set flags. Values that
// parse as integers, floats or booleans are stored as such.
func newRecord(cmd *cobra.Command, operation, title string) (*types.Record, error) {
	rec := types.NewRecord(map[string]interface{}{"title": title})
	sets, _ := cmd.Flags().GetStringArray("set")
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, NewValidationError(operation, "--set", kv, "Use --set key=value")
		}
		rec.Set(key, parseValue(value))
	}
	return rec, nil
}

func parseValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func (cli *CLI) node(operation, path string) (*nanotree.Node, error) {
	n, err := cli.tree.GetByPath(path)
	if err != nil {
		return nil, NewTreeError(operation, err)
	}
	return n, nil
}

func position(cmd *cobra.Command) types.Position {
	pos, _ := cmd.Flags().GetString("pos")
	return types.ParsePosition(pos)
}

func (cli *CLI) addRootCommand() {
	cmd := &cobra.Command{
		Use:   "add-root <title>",
		Short: "Add a root node",
		Long: `Add a root node after the last root, or at its sorted place when
order-by is configured.

Examples:
  nanotree add-root "Groceries"
  nanotree --order-by title,rank add-root "Groceries" --set rank=2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := newRecord(cmd, "add root", args[0])
			if err != nil {
				return err
			}
			n, err := cli.tree.AddRoot(cmd.Context(), rec)
			if err != nil {
				return NewTreeError("add root", err)
			}
			return cli.outputNodes([]*nanotree.Node{n})
		},
	}
	addSetFlag(cmd)
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addChildCommand() {
	cmd := &cobra.Command{
		Use:   "add-child <parent-path> <title>",
		Short: "Add a node under a parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := cli.node("add child", args[0])
			if err != nil {
				return err
			}
			rec, err := newRecord(cmd, "add child", args[1])
			if err != nil {
				return err
			}
			n, err := parent.AddChild(cmd.Context(), rec)
			if err != nil {
				return NewTreeError("add child", err)
			}
			return cli.outputNodes([]*nanotree.Node{n})
		},
	}
	addSetFlag(cmd)
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addSiblingCommand() {
	cmd := &cobra.Command{
		Use:   "add-sibling <anchor-path> <title>",
		Short: "Add a node next to another",
		Long: `Add a node in the anchor's level. Siblings after the new node shift
one step right together with their subtrees.

Positions: first-sibling, left, right, last-sibling, sorted-sibling.
Without --pos the node goes last, or at its sorted place when order-by is
configured.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			anchor, err := cli.node("add sibling", args[0])
			if err != nil {
				return err
			}
			rec, err := newRecord(cmd, "add sibling", args[1])
			if err != nil {
				return err
			}
			n, err := anchor.AddSibling(cmd.Context(), position(cmd), rec)
			if err != nil {
				return NewTreeError("add sibling", err)
			}
			return cli.outputNodes([]*nanotree.Node{n})
		},
	}
	cmd.Flags().StringP("pos", "p", "", "Position relative to the anchor")
	addSetFlag(cmd)
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addMoveCommand() {
	cmd := &cobra.Command{
		Use:   "move <path> <target-path>",
		Short: "Move a node and its subtree",
		Long: `Move a node and everything below it relative to a target node.

Positions: first-sibling, left, right, last-sibling, sorted-sibling,
first-child, last-child, sorted-child.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cli.node("move", args[0])
			if err != nil {
				return err
			}
			target, err := cli.node("move", args[1])
			if err != nil {
				return err
			}
			if err := n.Move(cmd.Context(), target, position(cmd)); err != nil {
				return NewTreeError("move", err)
			}
			return cli.outputNodes([]*nanotree.Node{n})
		},
	}
	cmd.Flags().StringP("pos", "p", "", "Position relative to the target")
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addDeleteCommand() {
	cmd := &cobra.Command{
		Use:   "delete <path>...",
		Short: "Delete nodes and their subtrees",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes := make([]*nanotree.Node, 0, len(args))
			for _, path := range args {
				n, err := cli.node("delete", path)
				if err != nil {
					return err
				}
				nodes = append(nodes, n)
			}
			if err := cli.tree.Delete(cmd.Context(), nodes...); err != nil {
				return NewTreeError("delete", err)
			}
			fmt.Fprintf(cli.out, "deleted %d node(s)\n", len(nodes))
			return nil
		},
	}
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addListCommand() {
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List the tree, or the subtree at path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				nodes, err := cli.tree.All()
				if err != nil {
					return NewTreeError("list", err)
				}
				return cli.outputNodes(nodes)
			}
			n, err := cli.node("list", args[0])
			if err != nil {
				return err
			}
			descendants, err := n.Descendants()
			if err != nil {
				return NewTreeError("list", err)
			}
			return cli.outputNodes(append([]*nanotree.Node{n}, descendants...))
		},
	}
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addShowCommand() {
	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Show a node with its ancestors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cli.node("show", args[0])
			if err != nil {
				return err
			}
			ancestors, err := n.Ancestors()
			if err != nil {
				return NewTreeError("show", err)
			}
			return cli.outputNodes(append(ancestors, n))
		},
	}
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addCheckCommand() {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the stored tree is consistent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.tree.Check(); err != nil {
				return NewTreeError("check tree", err)
			}
			fmt.Fprintln(cli.out, "ok")
			return nil
		},
	}
	cli.rootCmd.AddCommand(cmd)
}
