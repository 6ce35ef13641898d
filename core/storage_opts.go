package casc

import "log/slog"

// StorageOption configures a Storage.
type StorageOption func(*Storage)

// WithOldIndexes selects the lowest versioned copy of each bucket index
// instead of the highest.
func WithOldIndexes(enabled bool) StorageOption {
	return func(s *Storage) {
		s.useOld = enabled
	}
}

// WithMemoryMapping maps data files read-only instead of reading regions
// with ReadAt. It falls back to ReadAt where mapping is unsupported.
func WithMemoryMapping(enabled bool) StorageOption {
	return func(s *Storage) {
		s.mmap = enabled
	}
}

// WithStorageLogger sets the logger for storage operations.
// If not set, logging is disabled.
func WithStorageLogger(logger *slog.Logger) StorageOption {
	return func(s *Storage) {
		s.logger = logger
	}
}
