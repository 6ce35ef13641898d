package testutil

import (
	"encoding/binary"
	"math/bits"
)

// TVFSRef is one file span of a TVFS file node.
type TVFSRef struct {
	EncodingKey  []byte
	Offset       uint32
	Size         uint32
	PhysicalSize uint32
	Flag         uint8
	ActualSize   uint32
}

// Ref returns a reference covering size bytes at offset with consistent
// actual size.
func Ref(key []byte, offset, size uint32) TVFSRef {
	return TVFSRef{EncodingKey: key, Offset: offset, Size: size, PhysicalSize: size, ActualSize: size}
}

// TVFSNode is a node of a TVFS tree under construction.
type TVFSNode struct {
	Fragments [][]byte
	Children  []TVFSNode
	Refs      []TVFSRef
	prefix    bool
}

// Frags converts strings to fragments. No arguments yields no fragments.
func Frags(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

// Dir returns a prefix node with a single fragment.
func Dir(fragment string, children ...TVFSNode) TVFSNode {
	return DirFrags(Frags(fragment), children...)
}

// DirFrags returns a prefix node with arbitrary fragments.
func DirFrags(fragments [][]byte, children ...TVFSNode) TVFSNode {
	return TVFSNode{Fragments: fragments, Children: children, prefix: true}
}

// File returns a file node with a single fragment.
func File(fragment string, refs ...TVFSRef) TVFSNode {
	return FileFrags(Frags(fragment), refs...)
}

// FileFrags returns a file node with arbitrary fragments.
func FileFrags(fragments [][]byte, refs ...TVFSRef) TVFSNode {
	return TVFSNode{Fragments: fragments, Refs: refs}
}

// TVFSHeaderSize is the size of the header written by TVFS.
const TVFSHeaderSize = 38

// TVFS encodes a version 1 TVFS file with the given root nodes. Fragments
// must be shorter than 255 bytes.
func TVFS(keySize int, maxDepth uint16, roots ...TVFSNode) []byte {
	e := &tvfsEncoder{keySize: keySize}
	for _, r := range roots {
		e.collect(r)
	}
	e.width = max(1, 4-bits.LeadingZeros32(uint32(len(e.storage)))/8)
	var path []byte
	for _, r := range roots {
		path = append(path, e.node(r)...)
	}

	pathOff := uint32(TVFSHeaderSize)
	logicalOff := pathOff + uint32(len(path))
	storageOff := logicalOff + uint32(len(e.logical))

	out := append([]byte("TVFS"), 1, TVFSHeaderSize, byte(keySize), 9)
	out = binary.BigEndian.AppendUint32(out, 0)
	out = binary.BigEndian.AppendUint32(out, pathOff)
	out = binary.BigEndian.AppendUint32(out, uint32(len(path)))
	out = binary.BigEndian.AppendUint32(out, logicalOff)
	out = binary.BigEndian.AppendUint32(out, uint32(len(e.logical)))
	out = binary.BigEndian.AppendUint32(out, storageOff)
	out = binary.BigEndian.AppendUint32(out, uint32(len(e.storage)))
	out = binary.BigEndian.AppendUint16(out, maxDepth)
	out = append(out, path...)
	out = append(out, e.logical...)
	return append(out, e.storage...)
}

type tvfsEncoder struct {
	keySize int
	width   int
	storage []byte
	offsets []int
	next    int
	logical []byte
}

// collect lays out the storage table in the same order node emits refs.
func (e *tvfsEncoder) collect(n TVFSNode) {
	if n.prefix {
		for _, c := range n.Children {
			e.collect(c)
		}
		return
	}
	for _, r := range n.Refs {
		e.offsets = append(e.offsets, len(e.storage))
		key := make([]byte, e.keySize)
		copy(key, r.EncodingKey)
		e.storage = append(e.storage, key...)
		e.storage = binary.BigEndian.AppendUint32(e.storage, r.PhysicalSize)
		e.storage = append(e.storage, r.Flag)
		e.storage = binary.BigEndian.AppendUint32(e.storage, r.ActualSize)
	}
}

func (e *tvfsEncoder) node(n TVFSNode) []byte {
	var out []byte
	for _, f := range n.Fragments {
		out = append(out, byte(len(f)))
		out = append(out, f...)
	}
	out = append(out, 0xFF)

	if n.prefix {
		var body []byte
		for _, c := range n.Children {
			body = append(body, e.node(c)...)
		}
		out = binary.BigEndian.AppendUint32(out, 1<<31|uint32(4+len(body)))
		return append(out, body...)
	}

	out = binary.BigEndian.AppendUint32(out, uint32(len(e.logical)))
	e.logical = append(e.logical, byte(len(n.Refs)))
	for _, r := range n.Refs {
		e.logical = binary.BigEndian.AppendUint32(e.logical, r.Offset)
		e.logical = binary.BigEndian.AppendUint32(e.logical, r.Size)
		e.logical = appendUintBE(e.logical, uint64(e.offsets[e.next]), e.width)
		e.next++
	}
	return out
}
