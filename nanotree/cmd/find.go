package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/nanotree/nanotree"
	"github.com/arthur-debert/nanotree/nanotree/render"
	"github.com/arthur-debert/nanotree/nanotree/search"
)

func (cli *CLI) addFindCommand() {
	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Search node payloads",
		Long: `Search the payload fields of every node, or of the subtree under --in.
Title matches rank first, then matches at the start of a field.

Examples:
  nanotree find milk
  nanotree find --in 0001 --field note --exact "call back"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, _ := cmd.Flags().GetStringSlice("field")
			exact, _ := cmd.Flags().GetBool("exact")
			caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")
			limit, _ := cmd.Flags().GetInt("limit")
			opts := search.Options{
				Query:         args[0],
				Fields:        fields,
				ExactMatch:    exact,
				CaseSensitive: caseSensitive,
				MaxResults:    limit,
				Highlight:     true,
			}

			var (
				results []search.Result
				err     error
			)
			if in, _ := cmd.Flags().GetString("in"); in != "" {
				root, nodeErr := cli.node("find", in)
				if nodeErr != nil {
					return nodeErr
				}
				results, err = search.Subtree(root, opts)
			} else {
				results, err = search.Tree(cli.tree, opts)
			}
			if err != nil {
				return NewTreeError("find", err)
			}

			if name := cli.viperInst.GetString("format"); name != "" && name != render.Table.Name {
				nodes := make([]*nanotree.Node, len(results))
				for i, r := range results {
					nodes[i] = r.Node
				}
				return cli.outputNodes(nodes)
			}
			return cli.outputResults(results)
		},
	}
	cmd.Flags().String("in", "", "Only search the subtree at this path")
	cmd.Flags().StringSlice("field", nil, "Payload fields to search (default all)")
	cmd.Flags().Bool("exact", false, "Match whole field values only")
	cmd.Flags().Bool("case-sensitive", false, "Match case")
	cmd.Flags().Int("limit", 0, "Maximum number of results (0 for all)")
	cli.rootCmd.AddCommand(cmd)
}

// outputResults lists results best first, the best matching field
// highlighted.
func (cli *CLI) outputResults(results []search.Result) error {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tSCORE\tFIELD\tMATCH")
	for _, r := range results {
		field := r.MatchedFields[0]
		fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\n", r.Node.Path(), r.Score, field, r.Highlights[field])
	}
	return w.Flush()
}
