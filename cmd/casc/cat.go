package main

import (
	"github.com/spf13/cobra"

	"github.com/casclib/casc"
	casccore "github.com/casclib/casc/core"
)

func newCatCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Write a file to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withArchive(cmd, func(a *casc.Archive) error {
				content, err := a.ReadPath(casccore.FoldPath(args[0]))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(content)
				return err
			})
		},
	}
}
