// Package testutil builds synthetic CASC structures for tests: index files,
// BLTE containers, TVFS files and complete on-disk installations.
package testutil

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zlib"
)

// EncodingKey derives a deterministic 16 byte key from seed.
func EncodingKey(seed string) []byte {
	sum := md5.Sum([]byte(seed))
	return sum[:]
}

// Chunk is one BLTE chunk before encoding.
type Chunk struct {
	Mode byte
	Data []byte
}

// RawChunk stores data uncompressed.
func RawChunk(data []byte) Chunk {
	return Chunk{Mode: 'N', Data: data}
}

// ZlibChunk stores data zlib compressed.
func ZlibChunk(data []byte) Chunk {
	return Chunk{Mode: 'Z', Data: data}
}

// Encode returns the mode byte followed by the encoded payload.
func (c Chunk) Encode() []byte {
	out := []byte{c.Mode}
	if c.Mode != 'Z' {
		return append(out, c.Data...)
	}
	return append(out, Zlib(c.Data)...)
}

// Zlib compresses data as a complete zlib stream.
func Zlib(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// EncodedChunk is a pre-encoded chunk with an explicit decoded size, for
// building malformed content.
type EncodedChunk struct {
	Encoded          []byte
	DecompressedSize uint32
	Hash             []byte
}

// BLTE encodes chunks as BLTE content with a chunk table.
func BLTE(chunks ...Chunk) []byte {
	enc := make([]EncodedChunk, len(chunks))
	for i, c := range chunks {
		e := c.Encode()
		enc[i] = EncodedChunk{Encoded: e, DecompressedSize: uint32(len(c.Data))}
	}
	return BLTEEncoded(enc...)
}

// BLTEEncoded assembles BLTE content from pre-encoded chunks. A nil Hash is
// replaced by the MD5 of the encoded bytes.
func BLTEEncoded(chunks ...EncodedChunk) []byte {
	headerSize := 8 + 4 + 24*len(chunks)
	out := make([]byte, 0, headerSize)
	out = append(out, "BLTE"...)
	out = binary.BigEndian.AppendUint32(out, uint32(headerSize))
	out = append(out, 0x0F, byte(len(chunks)>>16), byte(len(chunks)>>8), byte(len(chunks)))
	for _, c := range chunks {
		out = binary.BigEndian.AppendUint32(out, uint32(len(c.Encoded)))
		out = binary.BigEndian.AppendUint32(out, c.DecompressedSize)
		hash := c.Hash
		if hash == nil {
			sum := md5.Sum(c.Encoded)
			hash = sum[:]
		}
		out = append(out, hash...)
	}
	for _, c := range chunks {
		out = append(out, c.Encoded...)
	}
	return out
}

// FlatBLTE encodes data as BLTE content without a chunk table.
func FlatBLTE(data []byte) []byte {
	out := append([]byte("BLTE"), 0, 0, 0, 0)
	return append(out, data...)
}

// Container prefixes content with a storage container header for key.
// The key is padded or truncated to 16 bytes and stored reversed.
func Container(key, content []byte) []byte {
	var k [16]byte
	copy(k[:], key)
	out := make([]byte, 0, 30+len(content))
	for i := len(k) - 1; i >= 0; i-- {
		out = append(out, k[i])
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(30+len(content)))
	out = binary.LittleEndian.AppendUint16(out, 0)
	out = binary.LittleEndian.AppendUint32(out, 0)
	out = binary.LittleEndian.AppendUint32(out, 0)
	return append(out, content...)
}

// IndexLayout holds the header fields of an index file.
type IndexLayout struct {
	Version          uint16
	Bucket           uint8
	SizeLength       uint8
	OffsetLength     uint8
	KeyLength        uint8
	DataFileSizeBits uint8
	DataSizeMaximum  uint64
}

// DefaultIndexLayout returns the layout used by current installations.
func DefaultIndexLayout(bucket uint8) IndexLayout {
	return IndexLayout{
		Version:          7,
		Bucket:           bucket,
		SizeLength:       4,
		OffsetLength:     5,
		KeyLength:        9,
		DataFileSizeBits: 30,
		DataSizeMaximum:  1 << 30,
	}
}

// IndexEntry is one index record. Key is truncated or zero padded to the
// layout key length.
type IndexEntry struct {
	Key        []byte
	DataOffset uint64
	FileSize   uint64
}

// Index encodes an index file holding entries in the given order.
func Index(l IndexLayout, entries ...IndexEntry) []byte {
	header := binary.LittleEndian.AppendUint16(nil, l.Version)
	header = append(header, l.Bucket, 0, l.SizeLength, l.OffsetLength, l.KeyLength, l.DataFileSizeBits)
	header = binary.LittleEndian.AppendUint64(header, l.DataSizeMaximum)

	var body []byte
	for _, e := range entries {
		key := make([]byte, l.KeyLength)
		copy(key, e.Key)
		body = append(body, key...)
		body = appendUintBE(body, e.DataOffset, int(l.OffsetLength))
		body = appendUintLE(body, e.FileSize, int(l.SizeLength))
	}

	out := littleHashBlock(nil, header)
	for len(out)%16 != 0 {
		out = append(out, 0)
	}
	return littleHashBlock(out, body)
}

func littleHashBlock(dst, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	dst = binary.LittleEndian.AppendUint32(dst, 0)
	return append(dst, payload...)
}

func appendUintBE(dst []byte, v uint64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

func appendUintLE(dst []byte, v uint64, n int) []byte {
	for i := range n {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

// BucketIndex mirrors the storage bucket routing for fixtures.
func BucketIndex(key []byte) uint8 {
	var acc byte
	for _, b := range key {
		acc ^= b
	}
	return (acc & 0xF) ^ (acc >> 4)
}

// ConfigText renders key=value lines from alternating keys and values.
func ConfigText(kv ...string) []byte {
	if len(kv)%2 != 0 {
		panic("testutil: ConfigText needs key value pairs")
	}
	var buf bytes.Buffer
	buf.WriteString("# generated\n")
	for i := 0; i < len(kv); i += 2 {
		fmt.Fprintf(&buf, "%s = %s\n", kv[i], kv[i+1])
	}
	return buf.Bytes()
}
