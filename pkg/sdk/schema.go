package indexstager

import (
	"github.com/kailas-cloud/indexstager/internal/db"
)

// Schema describes the index a migration builds. The index name comes from
// the migration.
type Schema struct {
	json     bool
	prefixes []string
	fields   []db.IndexField
}

// NewSchema starts a hash index schema over keys with the given prefixes.
func NewSchema(prefixes ...string) *Schema {
	return &Schema{prefixes: prefixes}
}

// OnJSON indexes JSON documents instead of hashes.
func (s *Schema) OnJSON() *Schema {
	s.json = true
	return s
}

// Text adds a full-text field.
func (s *Schema) Text(name string) *Schema {
	s.fields = append(s.fields, db.IndexField{Name: name, Type: db.IndexFieldText})
	return s
}

// Tag adds an exact-match tag field.
func (s *Schema) Tag(name string) *Schema {
	s.fields = append(s.fields, db.IndexField{Name: name, Type: db.IndexFieldTag})
	return s
}

// Numeric adds a numeric range field.
func (s *Schema) Numeric(name string) *Schema {
	s.fields = append(s.fields, db.IndexField{Name: name, Type: db.IndexFieldNumeric})
	return s
}

func (s *Schema) definition(name string) (*db.IndexDefinition, error) {
	b := db.NewIndex(name).Prefix(s.prefixes...)
	if s.json {
		b = b.OnJSON()
	}
	for _, f := range s.fields {
		switch f.Type {
		case db.IndexFieldTag:
			b = b.Tag(f.Name)
		case db.IndexFieldNumeric:
			b = b.Numeric(f.Name)
		default:
			b = b.Text(f.Name)
		}
	}
	return b.Build()
}
