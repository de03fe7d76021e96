package crud

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/redochen/ccnetcore/internal/orm/query"
	"github.com/redochen/ccnetcore/internal/orm/schema"
)

// Add inserts items in one transaction. Generated keys are written back.
func (r *Repository[T]) Add(ctx context.Context, items ...*T) (err error) {
	defer r.observe("add", time.Now(), &err)

	if len(items) == 0 {
		return invalidf("add %s: no items", r.meta.Table)
	}
	for _, item := range items {
		if err := r.validateItem(ctx, item); err != nil {
			return err
		}
	}

	return r.tx.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, item := range items {
			if err := r.insert(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// Create inserts item unless a row with the same key, or with the same values
// in every conflict field, already exists. The probe and the insert run in one
// transaction but are not atomic; unique columns are the backstop.
func (r *Repository[T]) Create(ctx context.Context, item *T, conflictFields ...string) (err error) {
	defer r.observe("create", time.Now(), &err)

	if err := r.validateItem(ctx, item); err != nil {
		return err
	}
	pred, err := r.conflictPredicate(item, conflictFields)
	if err != nil {
		return err
	}

	return r.tx.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if pred != nil {
			n, err := r.count(ctx, pred)
			switch {
			case err != nil:
				r.log.Warn("conflict probe failed", zap.Error(err))
			case n > 0:
				return fmt.Errorf("create %s: %w", r.meta.Table, ErrAlreadyExists)
			}
		}
		return r.insert(ctx, tx, item)
	})
}

func (r *Repository[T]) insert(ctx context.Context, tx *sql.Tx, item *T) error {
	n, err := r.d.Insert(ctx, tx, r.meta, item)
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.meta.Table, ConvertDBError(err))
	}
	if n == 0 {
		return fmt.Errorf("insert %s: %w", r.meta.Table, ErrFailure)
	}
	return nil
}

// conflictPredicate matches rows sharing item's key or all of its conflict fields.
// A generated key that is still unset takes no part in the probe.
func (r *Repository[T]) conflictPredicate(item *T, conflictFields []string) (*query.Predicate[T], error) {
	v := reflect.ValueOf(item).Elem()

	var fields []string
	keySlot := false
	if key, err := r.meta.Key(); err == nil {
		switch {
		case key.Valid(v):
			fields = append(fields, key.Field)
			keySlot = true
		case key.Has(schema.FlagExplicitKey):
			return nil, invalidf("create %s: blank key %s", r.meta.Table, key.Field)
		}
	}

	cols, err := r.meta.Lookup(conflictFields...)
	if err != nil {
		return nil, invalidf("create %s: %v", r.meta.Table, err)
	}
	for _, c := range cols {
		fields = append(fields, c.Field)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return query.Template(item, conflictTemplate(keySlot, len(cols)), fields...), nil
}

// conflictTemplate renders "{0} OR ({1} AND {2} ...)" with the key slot first
func conflictTemplate(keySlot bool, natural int) string {
	start := 0
	if keySlot {
		start = 1
	}
	slots := make([]string, natural)
	for i := range slots {
		slots[i] = query.Slot(start + i).String()
	}
	group := strings.Join(slots, " AND ")

	switch {
	case !keySlot:
		return group
	case natural == 0:
		return query.Slot(0).String()
	case natural == 1:
		return query.Slot(0).String() + " OR " + group
	}
	return query.Slot(0).String() + " OR (" + group + ")"
}
