package crud

import (
	"context"
	"time"

	"github.com/redochen/ccnetcore/internal/orm/query"
)

// Delete removes the rows matching cond on matchFields, or on every set field of
// cond when matchFields is empty. A condition matching every row is refused.
func (r *Repository[T]) Delete(ctx context.Context, cond *T, matchFields ...string) (int64, error) {
	return r.DeleteWith(ctx, cond, nil, matchFields...)
}

// DeleteWith is Delete with a per-field operator resolver
func (r *Repository[T]) DeleteWith(ctx context.Context, cond *T, resolver query.OperatorResolver, matchFields ...string) (n int64, err error) {
	defer r.observe("delete", time.Now(), &err)

	if cond == nil {
		return 0, invalidf("delete %s: nil condition", r.meta.Table)
	}
	pred := query.Match(cond, matchFields...)
	if resolver != nil {
		pred = pred.WithResolver(resolver)
	}
	plan, err := r.b.Delete(pred)
	if err != nil {
		return 0, r.planError("delete", err)
	}
	return r.exec(ctx, "delete", plan)
}

// DeleteIn removes every row whose field is one of values
func (r *Repository[T]) DeleteIn(ctx context.Context, field string, values []any) (n int64, err error) {
	defer r.observe("delete_in", time.Now(), &err)

	plan, err := r.b.DeleteIn(field, values)
	if err != nil {
		return 0, r.planError("delete", err)
	}
	return r.exec(ctx, "delete", plan)
}
