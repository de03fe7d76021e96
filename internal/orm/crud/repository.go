// Package crud provides the generic repository over entity metadata, the
// dialect layer and the transaction manager.
package crud

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/query"
	"github.com/redochen/ccnetcore/internal/orm/schema"
	"github.com/redochen/ccnetcore/internal/orm/transaction"
)

const (
	DefaultBootstrapInterval    = 500 * time.Millisecond
	DefaultBootstrapMaxInterval = 30 * time.Second
)

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

type options struct {
	log        *zap.Logger
	policy     query.MappingPolicy
	validate   *validator.Validate
	metrics    *Metrics
	softDelete string
	bootstrap  bool
	bootBase   time.Duration
	bootMax    time.Duration
}

// Option configures a Repository
type Option func(*options)

// WithLogger sets the repository logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMappingPolicy decides how rows that fail to map are handled
func WithMappingPolicy(p query.MappingPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithValidator replaces the validator run before Add and Create. nil disables validation.
func WithValidator(v *validator.Validate) Option {
	return func(o *options) { o.validate = v }
}

// WithMetrics records operation counters and latencies
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSoftDelete names the soft-delete flag column. Modify only sees rows where it is 0.
func WithSoftDelete(field string) Option {
	return func(o *options) { o.softDelete = field }
}

// WithBootstrap sets the backoff of the table bootstrap loop
func WithBootstrap(interval, maxInterval time.Duration) Option {
	return func(o *options) {
		o.bootstrap = true
		o.bootBase = interval
		o.bootMax = maxInterval
	}
}

// WithoutBootstrap skips the table bootstrap loop
func WithoutBootstrap() Option {
	return func(o *options) { o.bootstrap = false }
}

// Repository reads and writes entities of type T
type Repository[T any] struct {
	meta       *schema.Metadata
	d          dialect.Dialect
	b          *query.Builder[T]
	mapper     *query.Mapper[T]
	tx         *transaction.Manager
	log        *zap.Logger
	validate   *validator.Validate
	metrics    *Metrics
	softDelete *schema.Column

	ready     chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a repository for T and, unless disabled, starts a background loop
// that creates T's table. New does not wait for the table; calls made before
// Ready is closed may fail.
func New[T any](tx *transaction.Manager, d dialect.Dialect, opts ...Option) (*Repository[T], error) {
	if tx == nil {
		return nil, invalidf("transaction manager is required")
	}
	o := options{
		log:       zap.NewNop(),
		validate:  defaultValidator,
		bootstrap: true,
		bootBase:  DefaultBootstrapInterval,
		bootMax:   DefaultBootstrapMaxInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	b, err := query.NewBuilder[T](d)
	if err != nil {
		return nil, err
	}
	meta := b.Meta()

	r := &Repository[T]{
		meta:     meta,
		d:        d,
		b:        b,
		mapper:   query.NewMapper[T](meta, o.policy, o.log),
		tx:       tx,
		log:      o.log.With(zap.String("table", meta.Table)),
		validate: o.validate,
		metrics:  o.metrics,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	if o.softDelete != "" {
		col, ok := meta.Column(o.softDelete)
		if !ok {
			return nil, invalidf("%s has no soft-delete column %q", meta.Type.Name(), o.softDelete)
		}
		r.softDelete = col
	}

	if !o.bootstrap {
		r.cancel = func() {}
		close(r.done)
		return r, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.bootstrap(ctx, o.bootBase, o.bootMax)
	return r, nil
}

// Meta returns the metadata of T
func (r *Repository[T]) Meta() *schema.Metadata { return r.meta }

// Builder returns the statement builder of T
func (r *Repository[T]) Builder() *query.Builder[T] { return r.b }

// Ready is closed once the bootstrap loop has ensured the table exists.
// It is never closed when bootstrap is disabled or stopped by Close.
func (r *Repository[T]) Ready() <-chan struct{} { return r.ready }

// Close stops the bootstrap loop and waits for it to exit
func (r *Repository[T]) Close() {
	r.closeOnce.Do(r.cancel)
	<-r.done
}

func (r *Repository[T]) bootstrap(ctx context.Context, base, maxInterval time.Duration) {
	defer close(r.done)

	backoff := retry.WithCappedDuration(maxInterval, retry.WithJitterPercent(10, retry.NewExponential(base)))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if _, err := r.CreateIfNotExists(ctx); err != nil {
			r.log.Warn("bootstrap attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		r.log.Debug("bootstrap stopped", zap.Error(err))
		return
	}
	close(r.ready)
}

// CreateIfNotExists creates T's table unless it already exists. It reports
// true once the table is present.
func (r *Repository[T]) CreateIfNotExists(ctx context.Context) (ok bool, err error) {
	defer r.observe("create_table", time.Now(), &err)

	probeCtx, cancel := r.tx.Bound(ctx)
	exists := r.d.ExistsTable(probeCtx, r.tx.Querier(probeCtx), r.meta.Table)
	cancel()
	if exists {
		return true, nil
	}

	ddl := r.b.CreateTable()
	err = r.tx.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, ddl)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("create table %s: %w", r.meta.Table, err)
	}
	r.log.Info("table created")
	return true, nil
}

func (r *Repository[T]) observe(op string, start time.Time, err *error) {
	r.metrics.observe(r.meta.Table, op, start, *err)
}

func (r *Repository[T]) validateItem(ctx context.Context, item *T) error {
	if item == nil {
		return invalidf("%s: nil item", r.meta.Table)
	}
	if r.validate == nil {
		return nil
	}
	if err := r.validate.StructCtx(ctx, item); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParam, err)
	}
	return nil
}

// exec runs plan in a transaction and returns the affected row count
func (r *Repository[T]) exec(ctx context.Context, verb string, plan *query.Plan) (int64, error) {
	var n int64
	err := r.tx.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, plan.SQL, plan.Args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		r.log.Debug("statement failed", zap.String("verb", verb), zap.String("sql", plan.SQL), zap.Error(err))
		return 0, fmt.Errorf("%s %s: %w", verb, r.meta.Table, ConvertDBError(err))
	}
	return n, nil
}

// planError wraps a builder error as ErrInvalidParam
func (r *Repository[T]) planError(verb string, err error) error {
	return fmt.Errorf("%s %s: %w", verb, r.meta.Table, ConvertDBError(err))
}
