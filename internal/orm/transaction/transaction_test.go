package transaction

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE records (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countRecords(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n))
	return n
}

func TestWithTransactionCommits(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, WithLogger(zaptest.NewLogger(t)))

	err := mgr.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO records (name) VALUES ('a')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRecords(t, db))
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db)
	boom := errors.New("boom")

	err := mgr.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO records (name) VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRecords(t, db))
}

func TestWithTransactionRollsBackOnPanic(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db)

	assert.Panics(t, func() {
		_ = mgr.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO records (name) VALUES ('a')`)
			panic("kaboom")
		})
	})
	assert.Equal(t, 0, countRecords(t, db))
}

func TestNestedTransactionJoinsOuter(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db)
	boom := errors.New("outer failed")

	err := mgr.WithTransaction(context.Background(), func(ctx context.Context, outer *sql.Tx) error {
		err := mgr.WithTransaction(ctx, func(ctx context.Context, inner *sql.Tx) error {
			assert.Same(t, outer, inner)
			_, err := inner.ExecContext(ctx, `INSERT INTO records (name) VALUES ('nested')`)
			return err
		})
		require.NoError(t, err)

		q := mgr.Querier(ctx)
		assert.Equal(t, outer, q)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRecords(t, db))
}

func TestQuerierWithoutTransaction(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db)
	assert.Equal(t, db, mgr.Querier(context.Background()))
	assert.Equal(t, db, mgr.DB())
}

func TestDeadlockRetry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE records").WillReturnError(deadlock)
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mgr := NewManager(db, WithRetry(2, time.Millisecond), WithLogger(zaptest.NewLogger(t)))
	err = mgr.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE records SET name='x'")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeadlockRetriesExhausted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE records").WillReturnError(deadlock)
		mock.ExpectRollback()
	}

	mgr := NewManager(db, WithRetry(1, time.Millisecond))
	err = mgr.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE records SET name='x'")
		return err
	})
	assert.ErrorIs(t, err, ErrDeadlock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNonDeadlockErrorNotRetried(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE records").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	mgr := NewManager(db)
	err = mgr.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE records SET name='x'")
		return err
	})
	assert.EqualError(t, err, "syntax error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatementTimeout(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, WithStatementTimeout(20*time.Millisecond))

	err := mgr.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestBound(t *testing.T) {
	mgr := NewManager(nil)
	ctx, cancel := mgr.Bound(context.Background())
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	cancel()

	mgr = NewManager(nil, WithStatementTimeout(time.Second))
	ctx, cancel = mgr.Bound(context.Background())
	defer cancel()
	_, hasDeadline = ctx.Deadline()
	assert.True(t, hasDeadline)
}
