package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-openapi/inflect"
)

// cache holds one *Metadata per entity type for the life of the process.
// Concurrent first builds produce equal entries.
var cache sync.Map // reflect.Type -> *Metadata

// Option customizes metadata during explicit registration
type Option func(*builder) error

type builder struct {
	table   string
	columns map[string]func(*Column)
}

// WithTable overrides the table name
func WithTable(name string) Option {
	return func(b *builder) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("table name cannot be empty")
		}
		b.table = name
		return nil
	}
}

// WithColumn adjusts the column built for the named Go field after its tag is applied
func WithColumn(field string, fn func(*Column)) Option {
	return func(b *builder) error {
		if fn == nil {
			return fmt.Errorf("column option for %s is nil", field)
		}
		b.columns[field] = fn
		return nil
	}
}

// tableNamer lets an entity choose its own table name
type tableNamer interface {
	TableName() string
}

// Register builds the metadata for T and stores it, replacing any earlier entry
func Register[T any](opts ...Option) (*Metadata, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b := &builder{columns: make(map[string]func(*Column))}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}

	meta, err := build(t, b)
	if err != nil {
		return nil, err
	}
	cache.Store(t, meta)
	return meta, nil
}

// MustRegister is Register that panics on error, for package-level registration
func MustRegister[T any](opts ...Option) *Metadata {
	meta, err := Register[T](opts...)
	if err != nil {
		panic(err)
	}
	return meta
}

// Of returns the metadata for T, building it from struct tags on first use
func Of[T any]() (*Metadata, error) {
	return For(reflect.TypeOf((*T)(nil)).Elem())
}

// For returns the metadata for t, building it from struct tags on first use.
// Pointer types resolve to their element type.
func For(t reflect.Type) (*Metadata, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := cache.Load(t); ok {
		return cached.(*Metadata), nil
	}

	meta, err := build(t, &builder{columns: map[string]func(*Column){}})
	if err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(t, meta)
	return actual.(*Metadata), nil
}

// Registered returns every cached metadata entry ordered by table name
func Registered() []*Metadata {
	var out []*Metadata
	cache.Range(func(_, v any) bool {
		out = append(out, v.(*Metadata))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}

// Forget drops the cached entry for t. Used by tests that re-register a type.
func Forget(t reflect.Type) {
	cache.Delete(t)
}

func build(t reflect.Type, b *builder) (*Metadata, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: %s is not a struct", t)
	}

	meta := &Metadata{
		Type:   t,
		Table:  b.table,
		byName: make(map[string]*Column),
	}
	if meta.Table == "" {
		meta.Table = tableName(t)
	}

	var cols []*Column
	if err := collect(t, nil, b, &cols); err != nil {
		return nil, fmt.Errorf("schema %s: %w", t.Name(), err)
	}

	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })

	for _, c := range cols {
		lname := strings.ToLower(c.Name)
		if prev, dup := meta.byName[lname]; dup && prev != c {
			return nil, fmt.Errorf("schema %s: duplicate column %q", t.Name(), c.Name)
		}
		meta.byName[lname] = c
		meta.byName[strings.ToLower(c.Field)] = c

		if c.IsKey() {
			meta.keys = append(meta.keys, c)
		}
		if strings.EqualFold(c.Field, "id") {
			meta.idCol = c
		}
	}
	if len(meta.keys) == 0 && meta.idCol != nil {
		meta.idCol.Flags |= FlagKey
		switch meta.idCol.Type.Kind() {
		case reflect.Int, reflect.Int32, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
			meta.idCol.Flags |= FlagAutoIncrement
		}
		meta.keys = append(meta.keys, meta.idCol)
	}
	meta.Columns = cols
	return meta, nil
}

func collect(t reflect.Type, parent []int, b *builder, out *[]*Column) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, tagged := f.Tag.Lookup(TagName)
		index := append(append([]int(nil), parent...), i)

		// Embedded structs without a tag contribute their own fields
		if f.Anonymous && !tagged && f.Type.Kind() == reflect.Struct {
			if err := collect(f.Type, index, b, out); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		col := &Column{
			Field: f.Name,
			Name:  f.Name,
			Index: index,
			Type:  f.Type,
		}
		if err := parseTag(tag, col); err != nil {
			return err
		}
		if fn, ok := b.columns[f.Name]; ok {
			fn(col)
		}
		if col.Has(FlagIgnored) {
			continue
		}
		*out = append(*out, col)
	}
	return nil
}

func tableName(t reflect.Type) string {
	if n, ok := reflect.New(t).Interface().(tableNamer); ok {
		return n.TableName()
	}
	return inflect.Pluralize(t.Name())
}
