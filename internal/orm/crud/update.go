package crud

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/redochen/ccnetcore/internal/orm/query"
	"github.com/redochen/ccnetcore/internal/orm/schema"
	"github.com/redochen/ccnetcore/internal/orm/tracking"
)

// MergeFunc folds supplied into existing during Modify
type MergeFunc[T any] func(existing, supplied *T)

type cleaner interface {
	MarkClean()
}

// Update writes every writable column of item, matched by key. An item that
// implements tracking.Trackable and is clean is skipped without SQL.
func (r *Repository[T]) Update(ctx context.Context, item *T) (n int64, err error) {
	if item == nil {
		return 0, invalidf("update %s: nil item", r.meta.Table)
	}
	if t, ok := any(item).(tracking.Trackable); ok && !t.IsDirty() {
		return 0, nil
	}
	defer r.observe("update", time.Now(), &err)

	key, err := r.validKey(item)
	if err != nil {
		return 0, err
	}
	n, err = r.update(ctx, item, nil, []string{key.Field})
	if err == nil {
		if c, ok := any(item).(cleaner); ok {
			c.MarkClean()
		}
	}
	return n, err
}

// UpdateFields writes updateFields of item to the rows matching item on
// matchFields. Empty updateFields means every writable column; empty
// matchFields means the key.
func (r *Repository[T]) UpdateFields(ctx context.Context, item *T, updateFields, matchFields []string) (n int64, err error) {
	defer r.observe("update", time.Now(), &err)

	if item == nil {
		return 0, invalidf("update %s: nil item", r.meta.Table)
	}
	if len(matchFields) == 0 {
		key, err := r.validKey(item)
		if err != nil {
			return 0, err
		}
		matchFields = []string{key.Field}
	}
	return r.update(ctx, item, updateFields, matchFields)
}

// UpdateIn writes updateFields of item to every row whose field is one of values
func (r *Repository[T]) UpdateIn(ctx context.Context, field string, values []any, item *T, updateFields []string) (n int64, err error) {
	defer r.observe("update_in", time.Now(), &err)

	plan, err := r.b.UpdateIn(field, values, item, updateFields)
	if err != nil {
		return 0, r.planError("update", err)
	}
	return r.exec(ctx, "update", plan)
}

// UpdateTracked writes the fields changed on t since it was loaded or last
// saved. A clean wrapper issues no SQL and reports zero rows.
func (r *Repository[T]) UpdateTracked(ctx context.Context, t *tracking.Tracked[T]) (n int64, err error) {
	if t == nil {
		return 0, invalidf("update %s: nil tracked entity", r.meta.Table)
	}
	if !t.IsDirty() {
		return 0, nil
	}
	defer r.observe("update", time.Now(), &err)

	item := t.Entity()
	key, err := r.validKey(item)
	if err != nil {
		return 0, err
	}

	var fields []string
	for _, f := range t.ChangedFields() {
		if col, ok := r.meta.Column(f); ok && col.Writable() && !col.IsKey() {
			fields = append(fields, col.Field)
		}
	}
	n, err = r.update(ctx, item, fields, []string{key.Field})
	if err == nil {
		t.MarkClean()
	}
	return n, err
}

// Modify loads the live row with item's key, merges item into it, stamps it and
// writes it back. Rows flagged soft-deleted count as missing. On success item
// holds the stored state. A nil merge takes item as is.
func (r *Repository[T]) Modify(ctx context.Context, item *T, merge, stamp MergeFunc[T]) (err error) {
	defer r.observe("modify", time.Now(), &err)

	if item == nil {
		return invalidf("modify %s: nil item", r.meta.Table)
	}
	key, err := r.validKey(item)
	if err != nil {
		return err
	}

	cond := new(T)
	key.FieldValue(reflect.ValueOf(cond).Elem()).Set(key.FieldValue(reflect.ValueOf(item).Elem()))
	fields := []string{key.Field}
	if r.softDelete != nil {
		fields = append(fields, r.softDelete.Field)
	}
	probe := query.Match(cond, fields...)

	return r.tx.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		page, err := r.find(ctx, probe, FindOptions{})
		if err != nil {
			r.log.Warn("existence probe failed", zap.Error(err))
			return fmt.Errorf("modify %s: %w", r.meta.Table, ErrNotFound)
		}
		if len(page.Items) == 0 {
			return fmt.Errorf("modify %s: %w", r.meta.Table, ErrNotFound)
		}

		existing := &page.Items[0]
		if merge != nil {
			merge(existing, item)
		} else {
			*existing = *item
		}
		if stamp != nil {
			stamp(existing, item)
		}

		plan, err := r.b.Update(existing, nil, query.Match(existing, key.Field))
		if err != nil {
			return r.planError("modify", err)
		}
		res, err := tx.ExecContext(ctx, plan.SQL, plan.Args...)
		if err != nil {
			return fmt.Errorf("modify %s: %w", r.meta.Table, ConvertDBError(err))
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return fmt.Errorf("modify %s: %w", r.meta.Table, ErrFailure)
		}
		*item = *existing
		return nil
	})
}

func (r *Repository[T]) update(ctx context.Context, item *T, updateFields, matchFields []string) (int64, error) {
	plan, err := r.b.Update(item, updateFields, query.Match(item, matchFields...))
	if err != nil {
		return 0, r.planError("update", err)
	}
	return r.exec(ctx, "update", plan)
}

// validKey returns T's key column, failing when item leaves it blank
func (r *Repository[T]) validKey(item *T) (*schema.Column, error) {
	key, err := r.meta.Key()
	if err != nil {
		return nil, invalidf("%v", err)
	}
	if !key.Valid(reflect.ValueOf(item).Elem()) {
		return nil, invalidf("%s: blank key %s", r.meta.Table, key.Field)
	}
	return key, nil
}
