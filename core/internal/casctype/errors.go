package casctype

import (
	"errors"
	"io/fs"
)

// Sentinel errors for CASC operations.
var (
	// ErrFormat is returned when a hexadecimal or text literal is malformed.
	ErrFormat = errors.New("casc: malformed literal")

	// ErrMalformed is returned for any structural violation of an archive
	// format: truncated blocks, bad magic, inconsistent sizes, duplicate keys,
	// unsupported versions or flags.
	ErrMalformed = errors.New("casc: malformed archive structure")

	// ErrNotFound is returned when a key or path is absent.
	// It also matches fs.ErrNotExist.
	ErrNotFound error = notFoundError{}

	// ErrEndOfStream is returned when a bank stream has no more banks.
	ErrEndOfStream = errors.New("casc: no more banks to decode")

	// ErrIntegrity is returned when a checksum does not match its content.
	ErrIntegrity = errors.New("casc: integrity check failed")

	// ErrUnsupportedEncoding is returned for chunk encoding modes other than
	// raw and zlib.
	ErrUnsupportedEncoding = errors.New("casc: unsupported chunk encoding")
)

type notFoundError struct{}

func (notFoundError) Error() string { return "casc: not found" }

// Is reports fs.ErrNotExist as equivalent so io/fs callers can test for it.
func (notFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}
