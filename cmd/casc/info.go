package main

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/casclib/casc"
)

func newInfoCommand(g *globalFlags) *cobra.Command {
	var buckets bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show build and storage summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withArchive(cmd, func(a *casc.Archive) error {
				return printInfo(cmd.OutOrStdout(), a, buckets)
			})
		},
	}
	cmd.Flags().BoolVarP(&buckets, "buckets", "b", false, "show the index loaded for each bucket")
	return cmd
}

func printInfo(w io.Writer, a *casc.Archive, buckets bool) error {
	files, err := a.Files()
	if err != nil {
		return err
	}
	var (
		count, missing int
		total          uint64
	)
	for _, r := range files {
		if r.IsNestedArchive() {
			continue
		}
		count++
		if !r.ExistsInStorage() {
			missing++
			continue
		}
		total += r.FileSize()
	}

	p := &printer{w: w}
	p.printf("Data directory: %s\n", a.DataDir())
	p.printf("Build key:      %s\n", a.BuildKey())
	if info := a.BuildInfo(); info != nil {
		for _, field := range []string{"Product", "Version"} {
			if v, ok := info.FieldByName(0, field); ok && v != "" {
				p.printf("%-15s %s\n", field+":", v)
			}
		}
	}
	p.printf("Index entries:  %s\n", humanize.Comma(int64(a.Storage().EntryCount())))
	p.printf("Files:          %s (%s missing)\n", humanize.Comma(int64(count)), humanize.Comma(int64(missing)))
	p.printf("Stored size:    %s\n", humanize.IBytes(total))

	if buckets {
		p.printf("\n%-6s  %-8s  %10s  %10s  %s\n", "BUCKET", "VERSION", "ENTRIES", "STORED", "DATA FILES")
		for _, b := range a.Storage().Buckets() {
			p.printf("%-6.2x  %08x  %10s  %10s  %d\n", b.Bucket, b.Version,
				humanize.Comma(int64(b.Entries)), humanize.IBytes(b.StoredBytes), b.DataFiles)
		}
	}
	return p.err
}
