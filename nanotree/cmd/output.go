package main

import (
	"strings"

	"github.com/arthur-debert/nanotree/nanotree"
	"github.com/arthur-debert/nanotree/nanotree/render"
)

// outputNodes writes nodes in the --format format.
func (cli *CLI) outputNodes(nodes []*nanotree.Node) error {
	name := cli.viperInst.GetString("format")
	if name == "" {
		name = render.Table.Name
	}
	format, err := render.Get(name)
	if err != nil {
		return NewValidationError("write output", "format", name, "Use one of: "+strings.Join(render.List(), ", "))
	}
	return format.Render(cli.out, render.Views(nodes))
}
