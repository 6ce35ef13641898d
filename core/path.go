package casc

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/casclib/casc/core/internal/casctype"
)

// PathSeparator separates the fragments of a CASC path string.
const PathSeparator = `\`

// ConvertFilePath converts a CASC path such as `data\global\excel\armor.txt`
// into lookup fragments. Stored paths are lower case, so path is lower-cased
// before it is split on PathSeparator.
func ConvertFilePath(path string) [][]byte {
	parts := strings.Split(strings.ToLower(path), PathSeparator)
	frags := make([][]byte, len(parts))
	for i, p := range parts {
		frags[i] = []byte(p)
	}
	return frags
}

// FoldPath returns the form of a native path used for case-insensitive
// comparison: lower case, with slashes converted to PathSeparator.
func FoldPath(p string) string {
	return strings.ReplaceAll(strings.ToLower(p), "/", PathSeparator)
}

// JoinPathFragments joins fragments with PathSeparator. Every fragment must
// be valid UTF-8.
func JoinPathFragments(frags [][]byte) (string, error) {
	for i, f := range frags {
		if !utf8.Valid(f) {
			return "", fmt.Errorf("%w: path fragment %d is not valid UTF-8", casctype.ErrFormat, i)
		}
	}
	return string(bytes.Join(frags, []byte(PathSeparator))), nil
}
