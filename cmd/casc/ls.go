package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/casclib/casc"
	casccore "github.com/casclib/casc/core"
)

type listFlags struct {
	long bool
	all  bool
}

func newListCommand(g *globalFlags) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List files",
		Long: `List the native paths of the files in the archive, optionally limited to
those starting with prefix. Matching ignores case; '/' may be used in place of '\'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = casccore.FoldPath(args[0])
			}
			return g.withArchive(cmd, func(a *casc.Archive) error {
				return listFiles(cmd.OutOrStdout(), a, prefix, f)
			})
		},
	}
	cmd.Flags().BoolVarP(&f.long, "long", "l", false, "show sizes and storage state")
	cmd.Flags().BoolVarP(&f.all, "all", "a", false, "include nested TVFS files")
	return cmd
}

func listFiles(w io.Writer, a *casc.Archive, prefix string, f *listFlags) error {
	files, err := a.Files()
	if err != nil {
		return err
	}
	p := &printer{w: w}
	for _, r := range files {
		if r.IsNestedArchive() && !f.all {
			continue
		}
		path, err := r.Path()
		if err != nil {
			// Not UTF-8; still listable by its raw bytes.
			path = fmt.Sprintf("%q", bytes.Join(r.Fragments(), []byte(casccore.PathSeparator)))
		}
		if !strings.HasPrefix(casccore.FoldPath(path), prefix) {
			continue
		}
		if !f.long {
			p.printf("%s\n", path)
			continue
		}
		state := "-"
		switch {
		case r.IsNestedArchive():
			state = "tvfs"
		case !r.ExistsInStorage():
			state = "missing"
		}
		p.printf("%10s  %-7s  %s\n", humanize.IBytes(r.FileSize()), state, path)
	}
	return p.err
}
