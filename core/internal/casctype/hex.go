package casctype

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodeHex decodes a string of paired hexadecimal digits. Bytes appear in
// the order of the string, so the result can be considered big-endian.
// Both upper and lower case digits are accepted.
func DecodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length hex string %q", ErrFormat, s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return b, nil
}

// EncodeHex renders b as upper case hexadecimal.
func EncodeHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
