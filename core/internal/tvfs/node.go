package tvfs

import "github.com/casclib/casc/core/internal/casctype"

// Reference is one span of a logical file and the stored chunk holding it.
type Reference struct {
	// Offset and Size locate the span within the logical file.
	Offset uint32
	Size   uint32

	EncodingKey  casctype.Key
	PhysicalSize uint32
	// Flag is carried verbatim; its meaning is unknown.
	Flag       uint8
	ActualSize uint32
}

// Node is a path tree node: either *Prefix or *Leaf.
type Node interface {
	// Fragments returns the path fragments between the parent and this node.
	// Fragments are raw bytes and need not be valid UTF-8.
	Fragments() [][]byte
	isNode()
}

// Prefix is an interior node whose children share its fragments as a prefix.
// Children are ordered by their first fragment.
type Prefix struct {
	Path     [][]byte
	Children []Node
}

// Leaf is a file node.
type Leaf struct {
	Path       [][]byte
	References []Reference
}

func (p *Prefix) Fragments() [][]byte { return p.Path }
func (l *Leaf) Fragments() [][]byte   { return l.Path }

func (*Prefix) isNode() {}
func (*Leaf) isNode()   {}

// File is a decoded TVFS file.
type File struct {
	Version         uint8
	Flags           uint32
	EncodingKeySize uint8
	PatchKeySize    uint8
	MaxPathDepth    uint16
	Roots           []Node
}
