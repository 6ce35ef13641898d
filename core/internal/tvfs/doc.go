// Package tvfs decodes Tree Virtual File System files.
//
// A TVFS file holds a path stream encoding a prefix tree of path fragments,
// a logical table listing the spans of each file, and a storage table
// naming the encoding key of each span. Decode builds the node tree in
// memory; the tree is immutable and safe to share.
package tvfs
