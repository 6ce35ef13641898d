package casctype

import (
	"bytes"
	"iter"

	"github.com/google/btree"
)

// Key is a CASC key such as an encoding key or content key.
//
// Keys compare and test equal over the length of the shorter operand, so a
// short key acts as a wildcard over every longer key it prefixes. Because of
// that, Key has no stable hash and must not be used in hash-based sets; use
// KeyMap or sorted slices instead.
type Key struct {
	b []byte
}

// NewKey wraps b as a key. The slice is retained and must not be modified.
func NewKey(b []byte) Key {
	return Key{b: b}
}

// ParseKey constructs a key from its hexadecimal form.
func ParseKey(s string) (Key, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return Key{}, err
	}
	return Key{b: b}, nil
}

// MustParseKey is like ParseKey but panics on malformed input.
// It is intended for constants in tests.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// Bytes returns the key bytes. The returned slice aliases the key.
func (k Key) Bytes() []byte {
	return k.b
}

// Len returns the key length in bytes.
func (k Key) Len() int {
	return len(k.b)
}

// IsZero reports whether the key holds no bytes.
func (k Key) IsZero() bool {
	return len(k.b) == 0
}

// Compare compares the common prefix of k and other as unsigned bytes.
func (k Key) Compare(other Key) int {
	n := min(len(k.b), len(other.b))
	return bytes.Compare(k.b[:n], other.b[:n])
}

// Equal reports whether k and other share their common prefix.
func (k Key) Equal(other Key) bool {
	n := min(len(k.b), len(other.b))
	return bytes.Equal(k.b[:n], other.b[:n])
}

// String renders the key as upper case hexadecimal.
func (k Key) String() string {
	return EncodeHex(k.b)
}

// KeyMap is an ordered map from Key to V using prefix comparison.
//
// Lookups with a shorter key match the stored key it prefixes; stored keys
// sharing a common prefix with the query are ambiguous and must not occur.
// KeyMap is not safe for concurrent mutation. The zero value is ready to use.
type KeyMap[V any] struct {
	tree *btree.BTreeG[keyItem[V]]
}

type keyItem[V any] struct {
	key   Key
	value V
}

const keyMapDegree = 16

func (m *KeyMap[V]) init() {
	if m.tree == nil {
		m.tree = btree.NewG(keyMapDegree, func(a, b keyItem[V]) bool {
			return a.key.Compare(b.key) < 0
		})
	}
}

// Get returns the value stored for k.
func (m *KeyMap[V]) Get(k Key) (V, bool) {
	if m.tree == nil {
		var zero V
		return zero, false
	}
	item, ok := m.tree.Get(keyItem[V]{key: k})
	return item.value, ok
}

// Has reports whether a value is stored for k.
func (m *KeyMap[V]) Has(k Key) bool {
	_, ok := m.Get(k)
	return ok
}

// Put stores v under k, replacing any value stored under an equal key.
func (m *KeyMap[V]) Put(k Key, v V) {
	m.init()
	m.tree.ReplaceOrInsert(keyItem[V]{key: k, value: v})
}

// Len returns the number of stored keys.
func (m *KeyMap[V]) Len() int {
	if m.tree == nil {
		return 0
	}
	return m.tree.Len()
}

// All iterates over the stored pairs in key order.
func (m *KeyMap[V]) All() iter.Seq2[Key, V] {
	return func(yield func(Key, V) bool) {
		if m.tree == nil {
			return
		}
		m.tree.Ascend(func(item keyItem[V]) bool {
			return yield(item.key, item.value)
		})
	}
}
