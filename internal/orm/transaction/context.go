package transaction

import (
	"context"
	"database/sql"
)

type contextKey struct{}

// FromContext returns the transaction carried by ctx
func FromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(contextKey{}).(*sql.Tx)
	return tx, ok && tx != nil
}

// WithContext returns a copy of ctx carrying tx
func WithContext(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, contextKey{}, tx)
}
