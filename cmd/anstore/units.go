package main

import (
	"github.com/spf13/cobra"

	"github.com/fmeng/anstore/core"
)

func newUnitsCmd(flags *globalFlags) *cobra.Command {
	var (
		marker   string
		location string
	)

	cmd := &cobra.Command{
		Use:   "units [root...]",
		Short: "List every marked declaration",
		Long: `List every (marker, declaration) pair found under the scan roots, in discovery order.

Examples:
  anstore units example.com/shop/entity
  anstore units --marker example.com/shop/anns.Store --location field`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd.Context(), cmd, args)
			if err != nil {
				return err
			}
			defer s.close()

			units, err := s.reg.MarkedUnits(cmd.Context())
			if err != nil {
				return err
			}
			if marker != "" {
				ref, err := parseTypeRef(marker)
				if err != nil {
					return err
				}
				units = units.ByMarker(ref)
			}
			if location != "" {
				p, err := core.ParsePlacement(location)
				if err != nil {
					return err
				}
				units = units.ByLocation(p)
			}
			flags.render(cmd, units)
			return nil
		},
	}

	cmd.Flags().StringVar(&marker, "marker", "", "only units of this marker (import/path.Name)")
	cmd.Flags().StringVar(&location, "location", "", "only units placed on type, field or method")
	return cmd
}
