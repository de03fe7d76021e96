// Package tracking records in-memory mutations of entities so that unchanged
// entities can skip their UPDATE.
package tracking

import (
	"reflect"
	"sort"
	"sync"
)

// FieldChange is one field whose value differs from the snapshot
type FieldChange struct {
	Field    string
	OldValue any
	NewValue any
}

// ChangeTracker diffs the current field values of an entity against a snapshot
type ChangeTracker struct {
	mu       sync.RWMutex
	original map[string]any
	current  map[string]any
	changes  map[string]*FieldChange
}

// NewChangeTracker starts tracking from original. current may be nil, meaning unchanged.
func NewChangeTracker(original, current map[string]any) *ChangeTracker {
	if current == nil {
		current = original
	}
	ct := &ChangeTracker{
		original: copyValues(original),
		current:  copyValues(current),
		changes:  make(map[string]*FieldChange),
	}
	for field, v := range ct.current {
		ct.recompute(field, v)
	}
	for field := range ct.original {
		if _, ok := ct.current[field]; !ok {
			ct.recompute(field, nil)
		}
	}
	return ct
}

// SetFieldValue records a new value for field
func (ct *ChangeTracker) SetFieldValue(field string, value any) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	value = copyValue(value)
	ct.current[field] = value
	ct.recompute(field, value)
}

// recompute must be called with the write lock held or during construction
func (ct *ChangeTracker) recompute(field string, value any) {
	old, had := ct.original[field]
	if had && reflect.DeepEqual(old, value) {
		delete(ct.changes, field)
		return
	}
	ct.changes[field] = &FieldChange{Field: field, OldValue: old, NewValue: value}
}

// Changed reports whether field differs from the snapshot
func (ct *ChangeTracker) Changed(field string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.changes[field]
	return ok
}

// ChangedFields returns the changed field names, sorted
func (ct *ChangeTracker) ChangedFields() []string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	fields := make([]string, 0, len(ct.changes))
	for field := range ct.changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Change returns the change recorded for field, or nil
func (ct *ChangeTracker) Change(field string) *FieldChange {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.changes[field]
}

// HasChanges reports whether any field differs from the snapshot
func (ct *ChangeTracker) HasChanges() bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.changes) > 0
}

// Reset takes the current values as the new snapshot
func (ct *ChangeTracker) Reset() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.original = copyValues(ct.current)
	ct.changes = make(map[string]*FieldChange)
}

func copyValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue detaches slices, maps and pointers from the entity so later
// mutations through them show up as changes. Copies are one level deep.
func copyValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return copyValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(cp, rv)
		return cp.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		cp := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			cp.SetMapIndex(iter.Key(), iter.Value())
		}
		return cp.Interface()
	default:
		return v
	}
}
