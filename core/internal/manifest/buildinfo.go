package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/casclib/casc/core/internal/casctype"
)

// BuildInfoFileName is the name of the build info file located in the install
// root, the parent of the data directory.
const BuildInfoFileName = ".build.info"

const buildKeyField = "Build Key"

// FieldType is the declared data type of a build info column.
type FieldType uint8

// Field types recognised in build info descriptors.
const (
	FieldUnsupported FieldType = iota
	FieldString
	FieldDec
	FieldHex
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "STRING"
	case FieldDec:
		return "DEC"
	case FieldHex:
		return "HEX"
	default:
		return "UNSUPPORTED"
	}
}

func parseFieldType(s string) FieldType {
	switch s {
	case "STRING":
		return FieldString
	case "DEC":
		return FieldDec
	case "HEX":
		return FieldHex
	default:
		return FieldUnsupported
	}
}

// FieldDescriptor describes one build info column.
type FieldDescriptor struct {
	Name string
	Type FieldType
	// Size is the native byte width of the field; 0 means variable length.
	Size int
}

func parseFieldDescriptor(s string) (FieldDescriptor, error) {
	name, rest, ok := strings.Cut(s, "!")
	if !ok {
		return FieldDescriptor{}, fmt.Errorf("%w: field descriptor %q missing name terminator", casctype.ErrFormat, s)
	}
	typ, size, ok := strings.Cut(rest, ":")
	if !ok {
		return FieldDescriptor{}, fmt.Errorf("%w: field descriptor %q missing type terminator", casctype.ErrFormat, s)
	}
	n, err := strconv.Atoi(size)
	if err != nil {
		return FieldDescriptor{}, fmt.Errorf("%w: field descriptor %q size: %v", casctype.ErrFormat, s, err)
	}
	return FieldDescriptor{Name: name, Type: parseFieldType(typ), Size: n}, nil
}

// BuildInfo is the pipe-delimited table describing installed builds.
type BuildInfo struct {
	fields  []FieldDescriptor
	records [][]string
}

// ReadBuildInfo reads and parses the build info file at path.
func ReadBuildInfo(path string) (*BuildInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build info: %w", err)
	}
	return ParseBuildInfo(bytes.NewReader(data))
}

// ParseBuildInfo parses build info text. The first line holds the field
// descriptors; each following line is one record.
func ParseBuildInfo(r io.Reader) (*BuildInfo, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read build info: %w", err)
		}
		return nil, fmt.Errorf("%w: empty build info", casctype.ErrMalformed)
	}

	header := strings.Split(strings.TrimSuffix(sc.Text(), "\r"), "|")
	fields := make([]FieldDescriptor, 0, len(header))
	for _, h := range header {
		fd, err := parseFieldDescriptor(h)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fd)
	}

	var records [][]string
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		records = append(records, strings.Split(line, "|"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read build info: %w", err)
	}
	return &BuildInfo{fields: fields, records: records}, nil
}

// FieldCount returns the number of columns.
func (b *BuildInfo) FieldCount() int { return len(b.fields) }

// RecordCount returns the number of records.
func (b *BuildInfo) RecordCount() int { return len(b.records) }

// Descriptor returns the descriptor of column i.
func (b *BuildInfo) Descriptor(i int) (FieldDescriptor, bool) {
	if i < 0 || i >= len(b.fields) {
		return FieldDescriptor{}, false
	}
	return b.fields[i], true
}

// FieldIndex returns the column index of name, or -1.
func (b *BuildInfo) FieldIndex(name string) int {
	for i, f := range b.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Field returns column field of record rec.
func (b *BuildInfo) Field(rec, field int) (string, bool) {
	if rec < 0 || rec >= len(b.records) {
		return "", false
	}
	r := b.records[rec]
	if field < 0 || field >= len(r) {
		return "", false
	}
	return r[field], true
}

// FieldByName returns the named column of record rec.
func (b *BuildInfo) FieldByName(rec int, name string) (string, bool) {
	i := b.FieldIndex(name)
	if i < 0 {
		return "", false
	}
	return b.Field(rec, i)
}

// BuildKey returns the "Build Key" column of the first record.
func (b *BuildInfo) BuildKey() (string, error) {
	v, ok := b.FieldByName(0, buildKeyField)
	if !ok {
		return "", fmt.Errorf("%w: build info has no %q in record 0", casctype.ErrMalformed, buildKeyField)
	}
	return v, nil
}
