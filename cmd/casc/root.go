package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/casclib/casc"
	"github.com/casclib/casc/cache/disk"
	casccore "github.com/casclib/casc/core"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	dataDir  string
	buildKey string
	cacheDir string
	mmap     bool
	oldIndex bool
	verbose  bool
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "casc",
		Short: "Browse local CASC archive installations",
		Long: `casc reads the CASC data directory of a local game installation and
lists, prints or extracts the files named by its TVFS file system.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.dataDir, "data", "d", "Data", "CASC data directory")
	flags.StringVar(&g.buildKey, "build-key", "", "build configuration key (default: read from .build.info)")
	flags.StringVar(&g.cacheDir, "cache-dir", "", "directory for a persistent decoded-content cache")
	flags.BoolVar(&g.mmap, "mmap", false, "memory-map data files")
	flags.BoolVar(&g.oldIndex, "old-index", false, "use the lowest-versioned index copy of each bucket instead of the highest")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(
		newInfoCommand(g),
		newListCommand(g),
		newCatCommand(g),
		newExtractCommand(g),
	)
	return cmd
}

// open opens the archive selected by the global flags. The returned close
// function releases the archive and its cache.
func (g *globalFlags) open(cmd *cobra.Command) (*casc.Archive, func() error, error) {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	opts := []casc.Option{
		casc.WithLogger(logger),
		casc.WithStorageOptions(
			casccore.WithMemoryMapping(g.mmap),
			casccore.WithOldIndexes(g.oldIndex),
		),
	}
	if g.buildKey != "" {
		opts = append(opts, casc.WithBuildKey(g.buildKey))
	}

	var c *disk.Cache
	if g.cacheDir != "" {
		var err error
		c, err = disk.New(g.cacheDir)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, casc.WithCache(c))
	}

	a, err := casc.Open(g.dataDir, opts...)
	if err != nil {
		if c != nil {
			err = errors.Join(err, c.Close())
		}
		return nil, nil, err
	}
	closeFn := func() error {
		if c == nil {
			return a.Close()
		}
		return errors.Join(a.Close(), c.Close())
	}
	return a, closeFn, nil
}

// withArchive runs fn against the archive and joins its close error.
func (g *globalFlags) withArchive(cmd *cobra.Command, fn func(*casc.Archive) error) error {
	a, closeFn, err := g.open(cmd)
	if err != nil {
		return err
	}
	return errors.Join(fn(a), closeFn())
}
