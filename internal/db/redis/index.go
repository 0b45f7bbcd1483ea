package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/indexstager/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes the concrete FT index called name. FT.DROPINDEX follows
// aliases, so the name is resolved first and an alias is reported as absent.
// Documents are kept (no DD flag).
func (s *Store) DropIndex(ctx context.Context, name string) error {
	info, err := s.info(ctx, name)
	if err != nil {
		return err
	}
	if resolved := infoString(info, "index_name"); resolved != name {
		return db.ErrIndexNotFound
	}

	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists checks index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	if _, err := s.info(ctx, name); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListIndexes returns the names of all concrete FT indexes via FT._LIST.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	cmd := s.b().Arbitrary("FT._LIST").Build()
	names, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpListIndexes, Err: err}
	}
	return names, nil
}

// DescribeIndex reconstructs the definition of the index name resolves to.
func (s *Store) DescribeIndex(ctx context.Context, name string) (*db.IndexDefinition, error) {
	info, err := s.info(ctx, name)
	if err != nil {
		return nil, err
	}
	return parseDefinition(info)
}

// CopyIndex creates dst with the schema and key prefixes of src. Both indexes
// cover the same keys; dst backfills asynchronously, so callers poll
// ListIndexes before relying on it.
func (s *Store) CopyIndex(ctx context.Context, src, dst string) error {
	def, err := s.DescribeIndex(ctx, src)
	if err != nil {
		return fmt.Errorf("describe %s: %w", src, err)
	}
	copyDef, err := db.CopyOf(def).Named(dst).Build()
	if err != nil {
		return fmt.Errorf("copy definition %s -> %s: %w", src, dst, err)
	}
	return s.CreateIndex(ctx, copyDef)
}

// info runs FT.INFO and returns the top-level reply as a key/value map.
func (s *Store) info(ctx context.Context, name string) (map[string]rueidis.RedisMessage, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return pairs(raw), nil
}

func pairs(raw []rueidis.RedisMessage) map[string]rueidis.RedisMessage {
	out := make(map[string]rueidis.RedisMessage, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		if k := msgString(raw[i]); k != "" {
			out[strings.ToLower(k)] = raw[i+1]
		}
	}
	return out
}

func infoString(info map[string]rueidis.RedisMessage, key string) string {
	m, ok := info[key]
	if !ok {
		return ""
	}
	return msgString(m)
}

// msgString renders a string or integer reply. rueidis panics when ToString
// is called on other types, so the type is checked first.
func msgString(m rueidis.RedisMessage) string {
	switch {
	case m.IsString():
		s, _ := m.ToString()
		return s
	case m.IsInt64():
		n, _ := m.ToInt64()
		return strconv.FormatInt(n, 10)
	}
	return ""
}

func parseDefinition(info map[string]rueidis.RedisMessage) (*db.IndexDefinition, error) {
	def := &db.IndexDefinition{
		Name:        infoString(info, "index_name"),
		StorageType: db.StorageHash,
	}

	if m, ok := info["index_definition"]; ok && m.IsArray() {
		raw, err := m.ToArray()
		if err != nil {
			return nil, fmt.Errorf("parse index_definition: %w", err)
		}
		d := pairs(raw)
		if kt := infoString(d, "key_type"); kt != "" {
			def.StorageType = db.StorageType(strings.ToUpper(kt))
		}
		if p, ok := d["prefixes"]; ok {
			prefixes, err := p.AsStrSlice()
			if err != nil {
				return nil, fmt.Errorf("parse prefixes: %w", err)
			}
			def.Prefixes = prefixes
		}
	}

	attrs, ok := info["attributes"]
	if !ok || !attrs.IsArray() {
		return nil, errors.New("FT.INFO reply has no attributes")
	}
	list, err := attrs.ToArray()
	if err != nil {
		return nil, fmt.Errorf("parse attributes: %w", err)
	}
	for i := range list {
		if !list[i].IsArray() {
			return nil, fmt.Errorf("parse attribute %d: not an array", i)
		}
		tokens, err := list[i].ToArray()
		if err != nil {
			return nil, fmt.Errorf("parse attribute %d: %w", i, err)
		}
		f, err := parseField(tokens)
		if err != nil {
			return nil, fmt.Errorf("parse attribute %d: %w", i, err)
		}
		def.Fields = append(def.Fields, f)
	}
	return def, nil
}

// attrValueKeys are FT.INFO attribute keys followed by a value; anything else
// is a bare flag such as SORTABLE.
var attrValueKeys = map[string]struct{}{
	"IDENTIFIER": {}, "ATTRIBUTE": {}, "TYPE": {}, "SEPARATOR": {}, "WEIGHT": {},
	"ALGORITHM": {}, "DATA_TYPE": {}, "DIM": {}, "DISTANCE_METRIC": {},
	"M": {}, "EF_CONSTRUCTION": {}, "EF_RUNTIME": {}, "INITIAL_CAP": {}, "BLOCK_SIZE": {},
}

func parseField(tokens []rueidis.RedisMessage) (db.IndexField, error) {
	values := make(map[string]string)
	flags := make(map[string]bool)
	for i := 0; i < len(tokens); {
		key := strings.ToUpper(msgString(tokens[i]))
		if _, ok := attrValueKeys[key]; ok && i+1 < len(tokens) {
			values[key] = msgString(tokens[i+1])
			i += 2
			continue
		}
		flags[key] = true
		i++
	}

	ft, err := db.ParseIndexFieldType(values["TYPE"])
	if err != nil {
		return db.IndexField{}, err
	}
	f := db.IndexField{
		Name: values["IDENTIFIER"],
		Type: ft,
	}
	if attr := values["ATTRIBUTE"]; attr != "" && attr != f.Name {
		f.Alias = attr
	}
	switch ft {
	case db.IndexFieldTag:
		f.TagSeparator = values["SEPARATOR"]
		f.TagCaseSensitive = flags["CASESENSITIVE"]
	case db.IndexFieldVector:
		f.VectorAlgo = strings.ToUpper(values["ALGORITHM"])
		f.VectorDistance = strings.ToUpper(values["DISTANCE_METRIC"])
		dim, err := strconv.Atoi(values["DIM"])
		if err != nil {
			return db.IndexField{}, fmt.Errorf("vector %s: invalid DIM %q", f.Name, values["DIM"])
		}
		f.VectorDim = dim
	}
	return f, nil
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name}

	storage := idx.StorageType
	if storage == "" {
		storage = db.StorageHash
	}
	args = append(args, "ON", string(storage))

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}

	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case db.IndexFieldText:
		args = append(args, "TEXT")

	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}

	case db.IndexFieldVector:
		if f.VectorDim <= 0 {
			return nil, errors.New("vector DIM must be positive")
		}
		algo := f.VectorAlgo
		if algo == "" {
			algo = "FLAT"
		}
		distance := f.VectorDistance
		if distance == "" {
			distance = "COSINE"
		}
		args = append(args, "VECTOR", algo, "6",
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(f.VectorDim),
			"DISTANCE_METRIC", distance,
		)

	default:
		return nil, errors.New("unknown field type")
	}

	return args, nil
}
