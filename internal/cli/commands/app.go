package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redochen/ccnetcore/internal/cache"
	"github.com/redochen/ccnetcore/internal/config"
	"github.com/redochen/ccnetcore/internal/database"
	"github.com/redochen/ccnetcore/internal/domain"
	"github.com/redochen/ccnetcore/internal/logging"
	"github.com/redochen/ccnetcore/internal/orm/crud"
)

// app is the state shared by commands that touch the database
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *database.Store
	snaps    *cache.Snapshots
	registry *prometheus.Registry
	metrics  *crud.Metrics
	out      io.Writer
	noColor  bool
	closers  []func()
}

func openApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	store, err := database.Open(cmd.Context(), cfg.Database, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		registry: prometheus.NewRegistry(),
		out:      cmd.OutOrStdout(),
		noColor:  opts.noColor,
	}
	a.metrics = crud.NewMetrics(a.registry, cfg.Metrics.Namespace)

	if cfg.Cache.Enabled {
		cc := cache.DefaultConfig()
		cc.Addr = cfg.Cache.Addr
		cc.Password = cfg.Cache.Password
		cc.DB = cfg.Cache.DB
		cc.Prefix = cfg.Cache.Prefix
		cc.TTL = cfg.Cache.TTL
		snaps, err := cache.Dial(cc, log)
		if err != nil {
			log.Warn("snapshot cache unavailable, continuing without it", zap.Error(err))
		} else {
			a.snaps = snaps
		}
	}
	return a, nil
}

// Close releases repositories first, then the cache and the database
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.snaps != nil {
		a.snaps.Close()
	}
	a.store.Close()
	a.log.Sync()
}

func (a *app) repoOptions(extra ...crud.Option) []domain.Option {
	crudOpts := []crud.Option{
		crud.WithMappingPolicy(a.cfg.MappingPolicy()),
		crud.WithBootstrap(a.cfg.ORM.BootstrapInterval, a.cfg.ORM.BootstrapMaxInterval),
		crud.WithMetrics(a.metrics),
	}
	opts := []domain.Option{
		domain.WithLogger(a.log),
		domain.WithCrudOptions(append(crudOpts, extra...)...),
	}
	if a.snaps != nil {
		opts = append(opts, domain.WithSnapshots(a.snaps))
	}
	return opts
}

// track registers r to be closed with the app and waits for its table
func track[T any](ctx context.Context, a *app, r *crud.Repository[T]) error {
	a.closers = append(a.closers, r.Close)
	select {
	case <-r.Ready():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("table %s not ready: %w", r.Meta().Table, ctx.Err())
	}
}

func (a *app) roles(ctx context.Context) (*domain.RoleRepository, error) {
	r, err := domain.NewRoleRepository(a.store.Tx, a.store.Dialect, a.repoOptions()...)
	if err != nil {
		return nil, err
	}
	return r, track(ctx, a, r.Repository)
}

func (a *app) users(ctx context.Context) (*domain.UserRepository, error) {
	r, err := domain.NewUserRepository(a.store.Tx, a.store.Dialect, 0, a.repoOptions()...)
	if err != nil {
		return nil, err
	}
	return r, track(ctx, a, r.Repository.Repository)
}

// withDeadline runs fn with the app open and the command deadline applied
func withDeadline(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	cmd.SetContext(ctx)

	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
