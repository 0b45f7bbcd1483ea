package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_Simple(t *testing.T) {
	idx := NewIndex("articles_20240101000000-abcd1234").
		Prefix("articles:").
		Tag("category").
		Numeric("published").
		MustBuild()

	if idx.Name != "articles_20240101000000-abcd1234" {
		t.Errorf("name = %q", idx.Name)
	}
	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(idx.Fields))
	}
	if idx.Fields[0].Name != "category" || idx.Fields[0].Type != IndexFieldTag {
		t.Errorf("field[0] = %+v, want category TAG", idx.Fields[0])
	}
	if idx.Fields[1].Name != "published" || idx.Fields[1].Type != IndexFieldNumeric {
		t.Errorf("field[1] = %+v, want published NUMERIC", idx.Fields[1])
	}
}

func TestIndexBuilder_OnJSON(t *testing.T) {
	idx := NewIndex("j").OnJSON().Text("$.title").MustBuild()
	if idx.StorageType != StorageJSON {
		t.Errorf("storage = %q, want JSON", idx.StorageType)
	}
}

func TestIndexBuilder_CopyOfRenames(t *testing.T) {
	src := NewIndex("articles").Prefix("articles:").Text("title").MustBuild()

	dst := CopyOf(src).Named("articles-pre-staged-original").MustBuild()

	if dst.Name != "articles-pre-staged-original" {
		t.Errorf("name = %q", dst.Name)
	}
	if src.Name != "articles" {
		t.Errorf("source mutated: %q", src.Name)
	}
	dst.Prefixes[0] = "other:"
	if src.Prefixes[0] != "articles:" {
		t.Error("prefixes share backing array with source")
	}
}

func TestIndexBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
	}{
		{"empty name", NewIndex("").Tag("a")},
		{"invalid name", NewIndex("bad name").Tag("a")},
		{"no fields", NewIndex("idx")},
		{"duplicate field", NewIndex("idx").Tag("a").Text("a")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.builder.Build(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIndexBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewIndex("").MustBuild()
}

func TestIndexDefinition_String(t *testing.T) {
	idx := NewIndex("idx").Prefix("doc:").Tag("cat").Text("body").MustBuild()
	s := idx.String()
	want := "FT.CREATE idx ON HASH PREFIX doc: SCHEMA cat TAG body TEXT"
	if s != want {
		t.Errorf("String() = %q, want %q", s, want)
	}
	if !strings.HasPrefix(s, "FT.CREATE") {
		t.Error("missing FT.CREATE prefix")
	}
}

func TestParseIndexFieldType(t *testing.T) {
	tests := []struct {
		in   string
		want IndexFieldType
	}{
		{"TAG", IndexFieldTag},
		{"text", IndexFieldText},
		{"Numeric", IndexFieldNumeric},
		{"VECTOR", IndexFieldVector},
	}
	for _, tc := range tests {
		got, err := ParseIndexFieldType(tc.in)
		if err != nil {
			t.Fatalf("ParseIndexFieldType(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseIndexFieldType(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseIndexFieldType("GEOSHAPE"); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"articles", "articles_staged", "articles_20240101000000-abcd1234", "ns:idx"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = false", s)
		}
	}
	invalid := []string{"", "with space", "slash/name", "dot.name"}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = true", s)
		}
	}
}
