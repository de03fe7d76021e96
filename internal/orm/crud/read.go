package crud

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/query"
)

// FindOptions orders and pages a Find. Paging applies when PageSize > 0 and
// PageIndex >= 0; pages are 0-based.
type FindOptions struct {
	OrderBy   []dialect.Order
	PageSize  int
	PageIndex int
}

// Page is one page of a select. Items is never nil.
type Page[T any] struct {
	Items      []T
	TotalCount int64
	PageSize   int
	PageIndex  int
	TotalPages int
}

// Select returns one page of every row of T
func (r *Repository[T]) Select(ctx context.Context, size, index int) (page *Page[T], err error) {
	defer r.observe("select", time.Now(), &err)
	return r.find(ctx, nil, FindOptions{PageSize: size, PageIndex: index})
}

// Find returns the rows matching pred. A nil predicate matches every row.
func (r *Repository[T]) Find(ctx context.Context, pred *query.Predicate[T], opts FindOptions) (page *Page[T], err error) {
	defer r.observe("select", time.Now(), &err)
	return r.find(ctx, pred, opts)
}

func (r *Repository[T]) find(ctx context.Context, pred *query.Predicate[T], opts FindOptions) (*Page[T], error) {
	plan, err := r.b.Select(pred, opts.OrderBy, opts.PageSize, opts.PageIndex)
	if err != nil {
		return nil, r.planError("select", err)
	}

	ctx, cancel := r.tx.Bound(ctx)
	defer cancel()
	q := r.tx.Querier(ctx)

	rows, err := q.QueryContext(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", r.meta.Table, err)
	}
	defer rows.Close()

	items, err := r.mapper.MapRows(rows)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", r.meta.Table, err)
	}

	page := &Page[T]{Items: items, PageSize: opts.PageSize, PageIndex: opts.PageIndex}
	if plan.CountSQL == "" {
		page.TotalCount = int64(len(items))
		if len(items) > 0 {
			page.TotalPages = 1
		}
		return page, nil
	}

	if err := q.QueryRowContext(ctx, plan.CountSQL, plan.Args...).Scan(&page.TotalCount); err != nil {
		return nil, fmt.Errorf("count %s: %w", r.meta.Table, err)
	}
	size := int64(opts.PageSize)
	page.TotalPages = int((page.TotalCount + size - 1) / size)
	return page, nil
}

// Get loads the row whose key equals key
func (r *Repository[T]) Get(ctx context.Context, key any) (item *T, err error) {
	defer r.observe("get", time.Now(), &err)

	cond, field, err := r.keyCondition(key)
	if err != nil {
		return nil, err
	}
	page, err := r.find(ctx, query.Match(cond, field), FindOptions{})
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, fmt.Errorf("get %s %v: %w", r.meta.Table, key, ErrNotFound)
	}
	return &page.Items[0], nil
}

// Count returns the number of rows matching pred
func (r *Repository[T]) Count(ctx context.Context, pred *query.Predicate[T]) (n int64, err error) {
	defer r.observe("count", time.Now(), &err)
	return r.count(ctx, pred)
}

// Exists reports whether any row matches pred
func (r *Repository[T]) Exists(ctx context.Context, pred *query.Predicate[T]) (ok bool, err error) {
	defer r.observe("exists", time.Now(), &err)
	n, err := r.count(ctx, pred)
	return n > 0, err
}

func (r *Repository[T]) count(ctx context.Context, pred *query.Predicate[T]) (int64, error) {
	plan, err := r.b.Count(pred)
	if err != nil {
		return 0, r.planError("count", err)
	}
	ctx, cancel := r.tx.Bound(ctx)
	defer cancel()

	var n int64
	if err := r.tx.Querier(ctx).QueryRowContext(ctx, plan.SQL, plan.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.meta.Table, err)
	}
	return n, nil
}

// keyCondition builds a condition entity holding only key and returns it with the key field name
func (r *Repository[T]) keyCondition(key any) (*T, string, error) {
	col, err := r.meta.Key()
	if err != nil {
		return nil, "", invalidf("%v", err)
	}
	if key == nil {
		return nil, "", invalidf("%s: nil key", r.meta.Table)
	}
	cond := new(T)
	v := reflect.ValueOf(cond).Elem()
	if err := query.Assign(col.FieldValue(v), key); err != nil {
		return nil, "", invalidf("%s key %v: %v", r.meta.Table, key, err)
	}
	if !col.Valid(v) {
		return nil, "", invalidf("%s: blank key", r.meta.Table)
	}
	return cond, col.Field, nil
}
