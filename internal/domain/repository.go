package domain

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/redochen/ccnetcore/internal/orm/crud"
	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/query"
	"github.com/redochen/ccnetcore/internal/orm/transaction"
)

// SnapshotCache keeps whole-table listings outside the database. Store and
// Invalidate must not block.
type SnapshotCache interface {
	Load(ctx context.Context, key string, dst any) (bool, error)
	Store(key string, v any)
	Invalidate(key string)
}

type entityPtr[T any] interface {
	*T
	Entity
}

// Policy holds the per-entity rules of a Repository
type Policy[T any] struct {
	// Natural lists the fields that together identify an entity besides its Uid
	Natural []string
	// Merge copies the caller-supplied values of an update onto the stored entity.
	// Values the caller left out must be preserved.
	Merge crud.MergeFunc[T]
}

// Repository adds bookkeeping, soft deletion and optional listing snapshots
// to the generic repository. Only the writes declared here invalidate the
// snapshot; writes made through the embedded generic methods do not.
type Repository[T any, P entityPtr[T]] struct {
	*crud.Repository[T]
	policy Policy[T]
	cache  SnapshotCache
	log    *zap.Logger
	now    func() time.Time
}

// Option configures a domain Repository
type Option func(*config)

type config struct {
	crud  []crud.Option
	cache SnapshotCache
	log   *zap.Logger
	now   func() time.Time
}

// WithCrudOptions passes options to the underlying generic repository
func WithCrudOptions(opts ...crud.Option) Option {
	return func(c *config) { c.crud = append(c.crud, opts...) }
}

// WithSnapshots caches full listings in cache
func WithSnapshots(cache SnapshotCache) Option {
	return func(c *config) { c.cache = cache }
}

// WithLogger sets the logger of both repository layers
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
			c.crud = append(c.crud, crud.WithLogger(l))
		}
	}
}

// WithClock replaces time.Now for bookkeeping timestamps
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// NewRepository creates the repository of T with the given policy
func NewRepository[T any, P entityPtr[T]](tx *transaction.Manager, d dialect.Dialect, policy Policy[T], opts ...Option) (*Repository[T, P], error) {
	c := config{log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	inner, err := crud.New[T](tx, d, append([]crud.Option{crud.WithSoftDelete("IsDeleted")}, c.crud...)...)
	if err != nil {
		return nil, err
	}
	return &Repository[T, P]{
		Repository: inner,
		policy:     policy,
		cache:      c.cache,
		log:        c.log,
		now:        c.now,
	}, nil
}

// Create assigns a Uid when missing, fills the creation bookkeeping and inserts
// item unless its Uid or natural fields are taken.
func (r *Repository[T, P]) Create(ctx context.Context, item *T, by string) error {
	P(item).Bookkeeping().prepare(by, r.now().UTC())
	if err := r.Repository.Create(ctx, item, r.policy.Natural...); err != nil {
		return err
	}
	r.invalidate()
	return nil
}

// Modify merges item into the live row with the same Uid and records by as the
// updater. Status and IsDeleted are taken from item.
func (r *Repository[T, P]) Modify(ctx context.Context, item *T, by string) error {
	P(item).Bookkeeping().UpdatedBy = by
	stamp := func(existing, supplied *T) {
		P(existing).Bookkeeping().stamp(P(supplied).Bookkeeping(), r.now().UTC())
	}
	if err := r.Repository.Modify(ctx, item, r.policy.Merge, stamp); err != nil {
		return err
	}
	r.invalidate()
	return nil
}

// SoftDelete flags the live row with uid as deleted
func (r *Repository[T, P]) SoftDelete(ctx context.Context, uid, by string) error {
	item := new(T)
	b := P(item).Bookkeeping()
	b.Uid = uid
	b.UpdatedBy = by

	keep := func(existing, supplied *T) {}
	stamp := func(existing, supplied *T) {
		eb := P(existing).Bookkeeping()
		eb.IsDeleted = 1
		eb.UpdatedBy = by
		eb.UpdatedAt = r.now().UTC()
	}
	if err := r.Repository.Modify(ctx, item, keep, stamp); err != nil {
		return err
	}
	r.invalidate()
	return nil
}

// List returns one page of the rows that are not soft-deleted
func (r *Repository[T, P]) List(ctx context.Context, opts crud.FindOptions) (*crud.Page[T], error) {
	return r.Find(ctx, r.live(), opts)
}

// All returns every row that is not soft-deleted. With snapshots enabled the
// listing is served from the cache when present and stored after a miss.
func (r *Repository[T, P]) All(ctx context.Context) ([]T, error) {
	key := r.Meta().Table
	if r.cache != nil {
		var items []T
		ok, err := r.cache.Load(ctx, key, &items)
		switch {
		case err != nil:
			r.log.Warn("snapshot load failed", zap.String("key", key), zap.Error(err))
		case ok:
			if items == nil {
				items = []T{}
			}
			return items, nil
		}
	}

	page, err := r.Find(ctx, r.live(), crud.FindOptions{})
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Store(key, page.Items)
	}
	return page.Items, nil
}

func (r *Repository[T, P]) live() *query.Predicate[T] {
	return query.Match(new(T), "IsDeleted")
}

func (r *Repository[T, P]) invalidate() {
	if r.cache != nil {
		r.cache.Invalidate(r.Meta().Table)
	}
}
