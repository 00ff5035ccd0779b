package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fmeng/anstore"
	"github.com/fmeng/anstore/core"
)

func newIndexCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "index <type|field|method> [root...]",
		Short:     "Show the marker index of one placement",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"type", "field", "method"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := core.ParsePlacement(args[0])
			if err != nil {
				return err
			}

			s, err := flags.open(cmd.Context(), cmd, args[1:])
			if err != nil {
				return err
			}
			defer s.close()

			var r anstore.Renderable
			switch p {
			case anstore.PlacementType:
				r, err = s.reg.TypeIndex(cmd.Context())
			case anstore.PlacementField:
				r, err = s.reg.FieldIndex(cmd.Context())
			default:
				r, err = s.reg.MethodIndex(cmd.Context())
			}
			if err != nil {
				return err
			}
			flags.render(cmd, r)
			return nil
		},
	}
}

// parseTypeRef splits "example.com/pkg.Name" at the last dot.
func parseTypeRef(s string) (anstore.TypeRef, error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 || strings.Contains(s[i:], "/") {
		return anstore.TypeRef{}, fmt.Errorf("invalid marker %q (want import/path.Name)", s)
	}
	return anstore.TypeRef{PkgPath: s[:i], Name: s[i+1:]}, nil
}
