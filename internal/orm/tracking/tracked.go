package tracking

import (
	"fmt"
	"reflect"

	"github.com/redochen/ccnetcore/internal/orm/query"
	"github.com/redochen/ccnetcore/internal/orm/schema"
)

// Trackable is implemented by values that know whether they were modified
// since they were loaded. Repositories skip the UPDATE of a clean Trackable.
type Trackable interface {
	IsDirty() bool
}

// Flag is an embeddable dirty marker for entities that track themselves
type Flag struct {
	dirty bool
}

func (f *Flag) MarkDirty()    { f.dirty = true }
func (f *Flag) MarkClean()    { f.dirty = false }
func (f *Flag) IsDirty() bool { return f.dirty }

// Tracked wraps an entity loaded from the store. Mutations made through Set or
// SetField mark it dirty; mutations made directly on Entity() are only noticed
// by ChangedFields.
type Tracked[T any] struct {
	entity  *T
	meta    *schema.Metadata
	tracker *ChangeTracker
	dirty   bool
}

// Track snapshots entity and returns a clean wrapper around it
func Track[T any](entity *T) (*Tracked[T], error) {
	if entity == nil {
		return nil, fmt.Errorf("tracking: nil entity")
	}
	meta, err := schema.Of[T]()
	if err != nil {
		return nil, err
	}
	t := &Tracked[T]{entity: entity, meta: meta}
	t.tracker = NewChangeTracker(t.values(), nil)
	return t, nil
}

// Entity returns the wrapped entity
func (t *Tracked[T]) Entity() *T { return t.entity }

// Set applies fn to the entity and marks it dirty
func (t *Tracked[T]) Set(fn func(*T)) {
	fn(t.entity)
	t.refresh()
	t.dirty = true
}

// SetField assigns value to the named field, converting it when needed
func (t *Tracked[T]) SetField(name string, value any) error {
	col, ok := t.meta.Column(name)
	if !ok {
		return fmt.Errorf("tracking: %s has no field %q", t.meta.Type.Name(), name)
	}
	field := col.FieldValue(reflect.ValueOf(t.entity).Elem())
	if err := query.Assign(field, value); err != nil {
		return fmt.Errorf("tracking: set %s.%s: %w", t.meta.Type.Name(), col.Field, err)
	}
	t.tracker.SetFieldValue(col.Field, field.Interface())
	t.dirty = true
	return nil
}

func (t *Tracked[T]) IsDirty() bool { return t.dirty }

// MarkClean takes the current state as the new snapshot
func (t *Tracked[T]) MarkClean() {
	t.tracker = NewChangeTracker(t.values(), nil)
	t.dirty = false
}

// ChangedFields lists, in column order, the fields that differ from the snapshot
func (t *Tracked[T]) ChangedFields() []string {
	t.refresh()
	var fields []string
	for _, col := range t.meta.Columns {
		if t.tracker.Changed(col.Field) {
			fields = append(fields, col.Field)
		}
	}
	return fields
}

func (t *Tracked[T]) refresh() {
	for field, v := range t.values() {
		t.tracker.SetFieldValue(field, v)
	}
}

func (t *Tracked[T]) values() map[string]any {
	v := reflect.ValueOf(t.entity).Elem()
	out := make(map[string]any, len(t.meta.Columns))
	for _, col := range t.meta.Columns {
		out[col.Field] = col.FieldValue(v).Interface()
	}
	return out
}
