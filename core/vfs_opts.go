package casc

import "log/slog"

// FileSystemOption configures a FileSystem.
type FileSystemOption func(*FileSystem)

// WithVerifyChunks checks every chunk read through the file system against
// the MD5 hash in its chunk table. A mismatch fails with ErrIntegrity.
func WithVerifyChunks(enabled bool) FileSystemOption {
	return func(fs *FileSystem) {
		fs.verify = enabled
	}
}

// WithFileSystemLogger sets the logger for file system operations.
// If not set, logging is disabled.
func WithFileSystemLogger(logger *slog.Logger) FileSystemOption {
	return func(fs *FileSystem) {
		fs.logger = logger
	}
}
