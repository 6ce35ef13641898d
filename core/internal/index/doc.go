// Package index decodes CASC bucket index files (.idx).
//
// An index file holds two little hash blocks. The header block describes the
// widths of the entry fields; the entries block, aligned to 16 bytes, holds
// fixed-width records of encoding key, packed data offset (big-endian) and
// stored size (little-endian). Lookups are O(log n) by key prefix.
package index
