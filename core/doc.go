// Package casc reads local CASC archive installations.
//
// A CASC data directory holds three layers:
//   - Bucket indexes (data/*.idx): sixteen sorted tables mapping truncated
//     encoding keys to regions of the numbered data files
//   - Data files (data/data.NNN): regions of BLTE chunked, optionally zlib
//     compressed content, each behind a 30 byte container header
//   - TVFS files: prefix trees mapping path fragments to the encoding keys
//     of file spans, named by the build configuration
//
// Storage implements the key to content layer and FileSystem the path to
// key layer on top of it, including nested TVFS files that act as
// directories.
package casc
