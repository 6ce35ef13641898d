package casc

import (
	"log/slog"

	"github.com/casclib/casc/cache"
	casccore "github.com/casclib/casc/core"
)

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for the archive, its storage and its file
// system. Storage and file system loggers given through
// WithStorageOptions and WithFileSystemOptions take precedence.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithCache caches the decoded content of files backed by a single stored
// span, keyed by encoding key.
func WithCache(c cache.Cache) Option {
	return func(a *Archive) {
		a.cache = c
	}
}

// WithBuildKey selects the build configuration by its hexadecimal key
// instead of reading .build.info.
func WithBuildKey(key string) Option {
	return func(a *Archive) {
		a.buildKey = key
	}
}

// WithStorageOptions passes options to the underlying storage.
func WithStorageOptions(opts ...casccore.StorageOption) Option {
	return func(a *Archive) {
		a.storageOpts = append(a.storageOpts, opts...)
	}
}

// WithFileSystemOptions passes options to the underlying file system.
func WithFileSystemOptions(opts ...casccore.FileSystemOption) Option {
	return func(a *Archive) {
		a.fsOpts = append(a.fsOpts, opts...)
	}
}

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	prefix    string
	suffix    string
	workers   int
	overwrite bool
}

// ExtractWithPrefix only extracts files whose native path starts with
// prefix. Matching is case-insensitive and accepts either separator.
func ExtractWithPrefix(prefix string) ExtractOption {
	return func(c *extractConfig) {
		c.prefix = prefix
	}
}

// ExtractWithSuffix only extracts files whose native path ends with
// suffix, for example ".txt". Matching is case-insensitive.
func ExtractWithSuffix(suffix string) ExtractOption {
	return func(c *extractConfig) {
		c.suffix = suffix
	}
}

// ExtractWithWorkers sets the number of files decoded in parallel.
// Values <= 0 use GOMAXPROCS.
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// ExtractWithOverwrite replaces existing files.
// By default, existing files are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}
