package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/casclib/casc/core/internal/casctype"
)

const (
	configDirName  = "config"
	bucketNameLen  = 2
	bucketTiers    = 2
	commentMarker  = "#"
	assignOperator = "="
)

// Config is a parsed configuration file: a set of unique key=value pairs.
type Config struct {
	values map[string]string
}

// ParseConfig decodes configuration text. Each non-blank line, after
// stripping a trailing # comment, must hold a key=value assignment.
// Keys and values are trimmed. Duplicate keys are malformed.
func ParseConfig(data []byte) (*Config, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: configuration is not valid UTF-8", casctype.ErrMalformed)
	}
	c := &Config{values: make(map[string]string)}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		record := strings.TrimSpace(sc.Text())
		if i := strings.Index(record, commentMarker); i >= 0 {
			record = record[:i]
		}
		if record == "" {
			continue
		}
		key, value, ok := strings.Cut(record, assignOperator)
		if !ok {
			return nil, fmt.Errorf("%w: configuration line %d has no assignment", casctype.ErrMalformed, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if _, dup := c.values[key]; dup {
			return nil, fmt.Errorf("%w: duplicate configuration key %q", casctype.ErrMalformed, key)
		}
		c.values[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	return c, nil
}

// ConfigPath returns the location of the configuration file for keyHex:
// config/<b0b1>/<b2b3>/<keyHex> below dataDir.
func ConfigPath(dataDir, keyHex string) (string, error) {
	if len(keyHex) < bucketNameLen*bucketTiers {
		return "", fmt.Errorf("%w: configuration key %q too short", casctype.ErrFormat, keyHex)
	}
	parts := []string{dataDir, configDirName}
	for tier := range bucketTiers {
		off := tier * bucketNameLen
		parts = append(parts, keyHex[off:off+bucketNameLen])
	}
	parts = append(parts, keyHex)
	return filepath.Join(parts...), nil
}

// LookupConfig reads the configuration file named by keyHex from dataDir.
func LookupConfig(dataDir, keyHex string) (*Config, error) {
	path, err := ConfigPath(dataDir, keyHex)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration %s: %w", keyHex, err)
	}
	return ParseConfig(data)
}

// Get returns the value assigned to key.
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Len returns the number of assignments.
func (c *Config) Len() int {
	return len(c.values)
}

// Keys returns the assigned keys in sorted order.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
