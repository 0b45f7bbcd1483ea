package db

import (
	"errors"
	"strconv"
	"strings"
)

// StorageType defines the document storage backend for FT indexes (HASH or JSON).
type StorageType string

const (
	// StorageHash stores documents as Redis hashes.
	StorageHash StorageType = "HASH"
	// StorageJSON stores documents as JSON.
	StorageJSON StorageType = "JSON"
)

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is a tag field.
	IndexFieldTag
	// IndexFieldText is a text field.
	IndexFieldText
	// IndexFieldVector is a vector field.
	IndexFieldVector
)

var fieldTypeNames = map[IndexFieldType]string{
	IndexFieldNumeric: "NUMERIC",
	IndexFieldTag:     "TAG",
	IndexFieldText:    "TEXT",
	IndexFieldVector:  "VECTOR",
}

func (t IndexFieldType) String() string {
	if s, ok := fieldTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
}

// ParseIndexFieldType maps an FT.INFO attribute type to IndexFieldType.
func ParseIndexFieldType(s string) (IndexFieldType, error) {
	upper := strings.ToUpper(s)
	for t, name := range fieldTypeNames {
		if name == upper {
			return t, nil
		}
	}
	return 0, errors.New("unsupported field type: " + s)
}

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name  string
	Alias string // AS alias in FT.CREATE SCHEMA
	Type  IndexFieldType

	// TAG options
	TagSeparator     string
	TagCaseSensitive bool

	// VECTOR options
	VectorAlgo     string // HNSW or FLAT
	VectorDim      int
	VectorDistance string // L2, IP, COSINE
}

// IndexDefinition is a complete FT index definition used by FT.CREATE.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		key := f.Name
		if f.Alias != "" {
			key = f.Alias
		}
		if seen[key] {
			return errors.New("duplicate field name: " + key)
		}
		seen[key] = true

		if f.Type == IndexFieldVector && f.VectorDim <= 0 {
			return errors.New("vector field requires positive DIM")
		}
	}

	return nil
}

// Clone returns a deep copy so callers can rename or extend it safely.
func (idx *IndexDefinition) Clone() *IndexDefinition {
	out := &IndexDefinition{
		Name:        idx.Name,
		StorageType: idx.StorageType,
		Prefixes:    append([]string(nil), idx.Prefixes...),
		Fields:      append([]IndexField(nil), idx.Fields...),
	}
	return out
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
