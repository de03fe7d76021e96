// Package transaction runs repository writes inside database transactions
// with a statement timeout and retry on deadlock.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/redochen/ccnetcore/internal/orm/dialect"
)

var (
	// ErrDeadlock is returned when every retry of a transaction deadlocked
	ErrDeadlock = errors.New("deadlock detected")
	// ErrTimeout is returned when a transaction outlives the statement timeout
	ErrTimeout = errors.New("transaction timeout")
)

const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 100 * time.Millisecond
)

// TxFunc is the body of a transaction. ctx carries the transaction so that
// nested WithTransaction calls join it.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// Manager begins, commits and rolls back transactions on one database
type Manager struct {
	db          *sql.DB
	log         *zap.Logger
	timeout     time.Duration
	isolation   sql.IsolationLevel
	maxRetries  uint64
	baseBackoff time.Duration
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for rollbacks and retries
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithStatementTimeout bounds every transaction and query run through the manager.
// Zero disables the bound.
func WithStatementTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithIsolation sets the isolation level of new transactions
func WithIsolation(level sql.IsolationLevel) Option {
	return func(m *Manager) { m.isolation = level }
}

// WithRetry sets how often a deadlocked transaction is retried and the first backoff
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(m *Manager) {
		m.maxRetries = maxRetries
		m.baseBackoff = base
	}
}

// NewManager creates a new transaction manager
func NewManager(db *sql.DB, opts ...Option) *Manager {
	m := &Manager{
		db:          db,
		log:         zap.NewNop(),
		isolation:   sql.LevelDefault,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: DefaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DB returns the underlying database
func (m *Manager) DB() *sql.DB { return m.db }

// Bound applies the statement timeout to ctx. The returned cancel must be called.
func (m *Manager) Bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// Querier returns the transaction carried by ctx, or the database
func (m *Manager) Querier(ctx context.Context) dialect.Querier {
	if tx, ok := FromContext(ctx); ok {
		return tx
	}
	return m.db
}

// WithTransaction runs fn in a transaction, committing when fn returns nil and
// rolling back on error or panic. If ctx already carries a transaction fn joins
// it and the outermost call decides the outcome. Deadlocked transactions are
// retried with exponential backoff.
func (m *Manager) WithTransaction(ctx context.Context, fn TxFunc) error {
	if tx, ok := FromContext(ctx); ok {
		return fn(ctx, tx)
	}

	ctx, cancel := m.Bound(ctx)
	defer cancel()

	backoff := retry.WithMaxRetries(m.maxRetries, retry.NewExponential(m.baseBackoff))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := m.run(ctx, fn)
		if err != nil && dialect.IsDeadlock(err) {
			m.log.Warn("transaction deadlocked, retrying", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: exceeded %v: %v", ErrTimeout, m.timeout, err)
	case dialect.IsDeadlock(err):
		return fmt.Errorf("%w: failed after %d attempts: %v", ErrDeadlock, attempt, err)
	}
	return err
}

func (m *Manager) run(ctx context.Context, fn TxFunc) (err error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: m.isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(WithContext(ctx, tx), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			m.log.Error("rollback failed", zap.Error(rbErr))
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
