// Package schema builds and caches the column metadata that drives SQL generation
// and row mapping. Metadata is built once per entity type, either through an explicit
// Register call or lazily on first use, and is immutable afterwards.
package schema

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNoKey is returned by Metadata.Key when a type has neither a declared key nor an "id" field
var ErrNoKey = errors.New("entity has no key column")

// ErrMultipleKeys is returned by Metadata.Key when more than one column is declared as key
var ErrMultipleKeys = errors.New("entity declares more than one key column")

// Flag is a bit set of per-column markers
type Flag uint16

const (
	// FlagKey marks a generated key (auto-increment or server assigned)
	FlagKey Flag = 1 << iota
	// FlagExplicitKey marks a key whose value is supplied by the caller
	FlagExplicitKey
	// FlagIgnored excludes the field from every statement
	FlagIgnored
	// FlagReadOnly keeps the column out of INSERT and UPDATE SET lists
	FlagReadOnly
	// FlagAutoIncrement asks the dialect for an identity column
	FlagAutoIncrement
	// FlagRequired emits NOT NULL
	FlagRequired
	// FlagUnique emits a UNIQUE constraint
	FlagUnique
	// FlagFixed selects CHAR over VARCHAR
	FlagFixed
	// FlagUnicode selects the N-prefixed character types where the dialect has them
	FlagUnicode
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagKey, "key"},
	{FlagExplicitKey, "explicitkey"},
	{FlagIgnored, "ignore"},
	{FlagReadOnly, "readonly"},
	{FlagAutoIncrement, "auto"},
	{FlagRequired, "required"},
	{FlagUnique, "unique"},
	{FlagFixed, "fixed"},
	{FlagUnicode, "unicode"},
}

// String returns the tag spelling of the set flags, separated by '|'
func (f Flag) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Column describes one mapped struct field
type Column struct {
	Field     string       // Go field name
	Name      string       // column name in the database
	Index     []int        // reflect index path, includes embedded structs
	Type      reflect.Type // Go type of the field
	Order     int          // declared order, ties keep declaration order
	Flags     Flag
	TypeName  string // DDL type override
	Length    int
	Default   string // default literal, emitted verbatim
	Converter Converter
}

// Has reports whether every flag in f is set on the column
func (c *Column) Has(f Flag) bool {
	return c.Flags&f == f
}

// IsKey reports whether the column is the entity key
func (c *Column) IsKey() bool {
	return c.Flags&(FlagKey|FlagExplicitKey) != 0
}

// Writable reports whether the column takes part in INSERT and UPDATE
func (c *Column) Writable() bool {
	return c.Flags&(FlagIgnored|FlagReadOnly) == 0
}

// Nullable reports whether the field can hold a database NULL
func (c *Column) Nullable() bool {
	if c.Has(FlagRequired) || c.IsKey() {
		return false
	}
	switch c.Type.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return reflect.PointerTo(c.Type).Implements(scannerType)
}

// FieldValue returns the addressable field inside the entity struct value v
func (c *Column) FieldValue(v reflect.Value) reflect.Value {
	return v.FieldByIndex(c.Index)
}

// Valid reports whether the field carries a meaningful value for matching.
// Pointer-like fields are valid when non-nil, value fields when not the zero value.
func (c *Column) Valid(v reflect.Value) bool {
	fv := c.FieldValue(v)
	switch fv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return !fv.IsNil()
	}
	return !fv.IsZero()
}

// DBValue returns the value to bind for the field, after the converter if one is set
func (c *Column) DBValue(v reflect.Value) (any, error) {
	fv := c.FieldValue(v)
	if (fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Interface) && fv.IsNil() {
		return nil, nil
	}
	if c.Converter != nil {
		out, err := c.Converter.ToDB(fv.Interface())
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", c.Field, err)
		}
		return out, nil
	}
	if fv.Kind() == reflect.Ptr && !fv.Type().Implements(valuerType) {
		return fv.Elem().Interface(), nil
	}
	return fv.Interface(), nil
}

// Metadata is the immutable column table of one entity type
type Metadata struct {
	Type    reflect.Type
	Table   string
	Columns []*Column

	byName map[string]*Column
	keys   []*Column
	idCol  *Column
}

// Key returns the single key column. A declared key wins over the "id" fallback,
// which is treated as a generated key.
func (m *Metadata) Key() (*Column, error) {
	switch len(m.keys) {
	case 0:
		return nil, fmt.Errorf("%s: %w", m.Type.Name(), ErrNoKey)
	case 1:
		return m.keys[0], nil
	default:
		return nil, fmt.Errorf("%s: %w", m.Type.Name(), ErrMultipleKeys)
	}
}

// Column looks a column up by field or column name, case-insensitively
func (m *Metadata) Column(name string) (*Column, bool) {
	c, ok := m.byName[strings.ToLower(name)]
	return c, ok
}

// Lookup resolves a list of field or column names, failing on the first unknown one
func (m *Metadata) Lookup(names ...string) ([]*Column, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := m.Column(n)
		if !ok {
			return nil, fmt.Errorf("%s has no column %q", m.Type.Name(), n)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// Writable returns the columns that take part in INSERT and UPDATE
func (m *Metadata) Writable() []*Column {
	out := make([]*Column, 0, len(m.Columns))
	for _, c := range m.Columns {
		if c.Writable() {
			out = append(out, c)
		}
	}
	return out
}

// Unique returns the columns declared unique, in column order
func (m *Metadata) Unique() []*Column {
	var out []*Column
	for _, c := range m.Columns {
		if c.Has(FlagUnique) {
			out = append(out, c)
		}
	}
	return out
}

// Indirect returns the struct value behind entity, which may be a struct or a pointer to one
func Indirect(entity any) reflect.Value {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

var (
	scannerType = reflect.TypeOf((*interface{ Scan(any) error })(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)
