package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bndr/gotabulate"
	"github.com/spf13/cobra"

	"github.com/fmeng/anstore/markers"
	"github.com/fmeng/anstore/schema"
)

func newDescribeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [root...]",
		Short: "Describe the markers seen while scanning",
		Long: `Describe every marker type met under the scan roots: its placements, version
constraint and arguments. With --format json an OpenAPI document with one schema
per marker is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd.Context(), cmd, args)
			if err != nil {
				return err
			}
			defer s.close()

			// Definitions are loaded while scanning.
			if _, err := s.reg.MarkedUnits(cmd.Context()); err != nil {
				return err
			}
			defs := s.src.Definitions()

			out := cmd.OutOrStdout()
			if flags.format == formatJSON {
				doc, err := schema.Document(cmd.Context(), defs)
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(doc, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal document: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintln(out, definitionTable(defs))
			return nil
		},
	}
}

func definitionTable(defs []*markers.Definition) string {
	if len(defs) == 0 {
		return "[]"
	}
	rows := make([][]any, 0, len(defs))
	for _, def := range defs {
		args := make([]string, 0, len(def.Order))
		for _, name := range def.Order {
			arg := def.Fields[name]
			entry := name + ":" + arg.Type.String()
			if arg.Optional {
				entry += "?"
			}
			args = append(args, entry)
		}
		base := ""
		if def.Base != nil {
			base = def.Base.String()
		}
		rows = append(rows, []any{def.Marker.String(), def.Targets.String(), def.Requires, base, strings.Join(args, ", ")})
	}
	t := gotabulate.Create(rows)
	t.SetHeaders([]string{"marker", "targets", "requires", "inherits", "args"})
	t.SetAlign("left")
	t.SetWrapStrings(true)
	t.SetMaxCellSize(60)
	return t.Render("grid")
}
