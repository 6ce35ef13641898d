package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/casclib/casc"
)

type extractFlags struct {
	prefix    string
	suffix    string
	workers   int
	overwrite bool
}

func newExtractCommand(g *globalFlags) *cobra.Command {
	f := &extractFlags{}
	cmd := &cobra.Command{
		Use:   "extract <destination>",
		Short: "Extract files to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withArchive(cmd, func(a *casc.Archive) error {
				start := time.Now()
				stats, err := a.Extract(cmd.Context(), args[0],
					casc.ExtractWithPrefix(f.prefix),
					casc.ExtractWithSuffix(f.suffix),
					casc.ExtractWithWorkers(f.workers),
					casc.ExtractWithOverwrite(f.overwrite),
				)
				fmt.Fprintf(cmd.OutOrStdout(), "extracted %s files (%s) in %s, %d skipped, %d missing\n",
					humanize.Comma(int64(stats.Files)), humanize.IBytes(stats.Bytes),
					time.Since(start).Round(time.Millisecond), stats.Skipped, stats.Missing)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "only extract paths starting with prefix")
	cmd.Flags().StringVar(&f.suffix, "suffix", "", "only extract paths ending with suffix")
	cmd.Flags().IntVarP(&f.workers, "workers", "j", 0, "parallel decoders (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "replace existing files")
	return cmd
}
