package query

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/redochen/ccnetcore/internal/orm/schema"
)

// MappingPolicy decides what happens when a row cannot be mapped
type MappingPolicy int

const (
	// FailFast stops at the first row that fails to map and returns its error
	FailFast MappingPolicy = iota
	// BestEffort logs the failure and yields a zero-valued entity for that row
	BestEffort
)

// String returns the configuration spelling of the policy
func (p MappingPolicy) String() string {
	if p == BestEffort {
		return "best_effort"
	}
	return "fail_fast"
}

// ParseMappingPolicy reads "fail_fast" or "best_effort"
func ParseMappingPolicy(s string) (MappingPolicy, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "", "fail_fast", "failfast":
		return FailFast, nil
	case "best_effort", "besteffort":
		return BestEffort, nil
	}
	return FailFast, fmt.Errorf("unknown mapping policy %q", s)
}

// Mapper turns result rows into entities of type T
type Mapper[T any] struct {
	meta   *schema.Metadata
	policy MappingPolicy
	log    *zap.Logger
}

// NewMapper returns a mapper for T. A nil logger discards best-effort failures.
func NewMapper[T any](meta *schema.Metadata, policy MappingPolicy, log *zap.Logger) *Mapper[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mapper[T]{meta: meta, policy: policy, log: log}
}

// MapRows reads every row. The returned slice is never nil on success.
func (m *Mapper[T]) MapRows(rows *sql.Rows) ([]T, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	targets := m.resolve(names)

	items := make([]T, 0)
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		item, err := m.mapValues(targets, values)
		if err != nil {
			if m.policy == FailFast {
				return nil, err
			}
			m.log.Warn("row mapping failed, using zero value",
				zap.String("table", m.meta.Table),
				zap.Int("row", len(items)),
				zap.Error(err))
			var zero T
			item = zero
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// MapRow maps one row given its column names and raw values
func (m *Mapper[T]) MapRow(names []string, values []any) (T, error) {
	return m.mapValues(m.resolve(names), values)
}

// resolve pairs result columns with metadata columns case-insensitively.
// Unmatched result columns map to nil and are skipped.
func (m *Mapper[T]) resolve(names []string) []*schema.Column {
	targets := make([]*schema.Column, len(names))
	for i, n := range names {
		if col, ok := m.meta.Column(n); ok {
			targets[i] = col
		}
	}
	return targets
}

func (m *Mapper[T]) mapValues(targets []*schema.Column, values []any) (T, error) {
	var item T
	v := reflect.ValueOf(&item).Elem()
	for i, col := range targets {
		if col == nil || i >= len(values) {
			continue
		}
		field := col.FieldValue(v)
		if col.Converter != nil {
			if err := col.Converter.FromDB(values[i], field); err != nil {
				return item, fmt.Errorf("map %s.%s: %w", m.meta.Table, col.Name, err)
			}
			continue
		}
		if err := Assign(field, values[i]); err != nil {
			return item, fmt.Errorf("map %s.%s: %w", m.meta.Table, col.Name, err)
		}
	}
	return item, nil
}

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// Assign stores a driver value into dst, converting between compatible representations
func Assign(dst reflect.Value, src any) error {
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if b, ok := src.([]byte); ok && dst.Type() != reflect.TypeOf(b) {
		src = string(b)
	}

	if dst.CanAddr() && reflect.PointerTo(dst.Type()).Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}

	if dst.Kind() == reflect.Ptr {
		elem := reflect.New(dst.Type().Elem())
		if err := Assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(src)
		if err != nil {
			return err
		}
		dst.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(src)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(src)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(src)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			s, err := cast.ToStringE(src)
			if err != nil {
				return err
			}
			dst.SetBytes([]byte(s))
			return nil
		}
		return assignCompound(dst, src)
	case reflect.Struct:
		if dst.Type() == timeType {
			t, err := cast.ToTimeE(src)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(t))
			return nil
		}
		return assignCompound(dst, src)
	case reflect.Map:
		return assignCompound(dst, src)
	default:
		if sv.Type().ConvertibleTo(dst.Type()) {
			dst.Set(sv.Convert(dst.Type()))
			return nil
		}
		return fmt.Errorf("cannot assign %T to %s", src, dst.Type())
	}
	return nil
}

// assignCompound rehydrates a struct, map or slice from JSON text or, for structs,
// from a map of field values applied field by field
func assignCompound(dst reflect.Value, src any) error {
	switch s := src.(type) {
	case string:
		return json.Unmarshal([]byte(s), dst.Addr().Interface())
	case map[string]any:
		if dst.Kind() != reflect.Struct {
			break
		}
		t := dst.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			for k, val := range s {
				if strings.EqualFold(k, f.Name) {
					if err := Assign(dst.Field(i), val); err != nil {
						return fmt.Errorf("%s: %w", f.Name, err)
					}
					break
				}
			}
		}
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", src, dst.Type())
}
