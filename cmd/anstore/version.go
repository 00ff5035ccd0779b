package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmeng/anstore"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the anstore version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), anstore.Version())
			return nil
		},
	}
}
