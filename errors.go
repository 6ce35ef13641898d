package casc

import (
	casccore "github.com/casclib/casc/core"
)

// Types re-exported from core.
type (
	// PathResult is a file found in the archive.
	PathResult = casccore.PathResult

	// Key is an encoding or content key.
	Key = casccore.Key
)

// Errors re-exported from core.
var (
	// ErrFormat is returned for malformed hexadecimal or text literals and
	// for paths that are not valid UTF-8.
	ErrFormat = casccore.ErrFormat

	// ErrMalformed is returned for structural violations of any archive format.
	ErrMalformed = casccore.ErrMalformed

	// ErrNotFound is returned when a key or path is absent. It matches
	// fs.ErrNotExist.
	ErrNotFound = casccore.ErrNotFound

	// ErrEndOfStream is returned when a bank stream is exhausted.
	ErrEndOfStream = casccore.ErrEndOfStream

	// ErrIntegrity is returned when chunk verification fails.
	ErrIntegrity = casccore.ErrIntegrity

	// ErrUnsupportedEncoding is returned for unknown chunk encoding modes.
	ErrUnsupportedEncoding = casccore.ErrUnsupportedEncoding
)
