package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Table lists one node per line with its path, depth and child count.
// Titles are indented by depth.
var Table = &Format{
	Name: "table",
	Render: func(w io.Writer, views []View) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PATH\tDEPTH\tCHILDREN\tTITLE")
		base := baseDepth(views)
		for _, v := range views {
			title := strings.Repeat("  ", v.Depth-base) + v.Title()
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", v.Path, v.Depth, v.NumChildren, title)
		}
		return tw.Flush()
	},
}

var JSON = &Format{
	Name:      "json",
	Extension: ".json",
	Render: func(w io.Writer, views []View) error {
		if views == nil {
			views = []View{}
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(views)
	},
}

var YAML = &Format{
	Name:      "yaml",
	Extension: ".yaml",
	Render: func(w io.Writer, views []View) error {
		if views == nil {
			views = []View{}
		}
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(views); err != nil {
			return err
		}
		return encoder.Close()
	},
}

func init() {
	mustRegister(Table)
	mustRegister(JSON)
	mustRegister(YAML)
}
