package casc

import (
	"github.com/casclib/casc/core/internal/blte"
	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/manifest"
	"github.com/casclib/casc/core/internal/tvfs"
)

// Re-export types from the internal packages for the public API.
type (
	// Key is an encoding or content key. Keys compare over their common
	// prefix and must not be used as map keys.
	Key = casctype.Key

	// BuildInfo is the parsed .build.info table of an installation.
	BuildInfo = manifest.BuildInfo

	// Config is a parsed key=value configuration file.
	Config = manifest.Config

	// ConfigReference names a file through a pair of configuration entries.
	ConfigReference = manifest.Reference

	// BankStream decodes the chunks of one stored region in order.
	BankStream = blte.BankStream

	// TVFSFile is a decoded TVFS file.
	TVFSFile = tvfs.File

	// Node is a TVFS path tree node, either *Prefix or *Leaf.
	Node = tvfs.Node

	// Prefix is a TVFS directory-like node.
	Prefix = tvfs.Prefix

	// Leaf is a TVFS file node.
	Leaf = tvfs.Leaf

	// Reference is one span of a TVFS file and the stored data backing it.
	Reference = tvfs.Reference
)

// Sentinel errors re-exported from internal/casctype.
var (
	// ErrFormat is returned for malformed hexadecimal or text literals.
	ErrFormat = casctype.ErrFormat

	// ErrMalformed is returned for structural violations of any archive format.
	ErrMalformed = casctype.ErrMalformed

	// ErrNotFound is returned when a key or path is absent. It matches
	// fs.ErrNotExist.
	ErrNotFound = casctype.ErrNotFound

	// ErrEndOfStream is returned when a bank stream is exhausted.
	ErrEndOfStream = casctype.ErrEndOfStream

	// ErrIntegrity is returned when chunk verification fails.
	ErrIntegrity = casctype.ErrIntegrity

	// ErrUnsupportedEncoding is returned for unknown chunk encoding modes.
	ErrUnsupportedEncoding = casctype.ErrUnsupportedEncoding
)

// Manifest helpers re-exported from internal/manifest.
var (
	// ParseKey decodes a hexadecimal key.
	ParseKey = casctype.ParseKey

	// NewKey wraps raw bytes as a key.
	NewKey = casctype.NewKey

	// ReadBuildInfo reads a .build.info file.
	ReadBuildInfo = manifest.ReadBuildInfo

	// ParseConfig parses configuration file contents.
	ParseConfig = manifest.ParseConfig

	// LookupConfig reads the configuration file with the given key from a
	// data directory.
	LookupConfig = manifest.LookupConfig

	// ReferenceFromConfig reads the reference stored under name.
	ReferenceFromConfig = manifest.ReferenceFromConfig
)

// BuildInfoFileName is the name of the build info file in an install root.
const BuildInfoFileName = manifest.BuildInfoFileName
