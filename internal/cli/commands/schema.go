package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/redochen/ccnetcore/internal/cli/ui"
	"github.com/redochen/ccnetcore/internal/config"
	"github.com/redochen/ccnetcore/internal/domain"
	"github.com/redochen/ccnetcore/internal/orm/crud"
	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/query"
	"github.com/redochen/ccnetcore/internal/orm/schema"
	"github.com/redochen/ccnetcore/internal/orm/transaction"
)

// table is one entity the command line knows how to describe and create
type table struct {
	ddl  func(d dialect.Dialect) (string, error)
	open func(tx *transaction.Manager, d dialect.Dialect, opts ...crud.Option) (creator, error)
}

type creator interface {
	CreateIfNotExists(ctx context.Context) (bool, error)
	Meta() *schema.Metadata
	Close()
}

func entityTable[T any]() table {
	return table{
		ddl: func(d dialect.Dialect) (string, error) {
			b, err := query.NewBuilder[T](d)
			if err != nil {
				return "", err
			}
			return b.CreateTable(), nil
		},
		open: func(tx *transaction.Manager, d dialect.Dialect, opts ...crud.Option) (creator, error) {
			return crud.New[T](tx, d, opts...)
		},
	}
}

var tables = map[string]table{
	"User":       entityTable[domain.User](),
	"Role":       entityTable[domain.Role](),
	"Menu":       entityTable[domain.Menu](),
	"Permission": entityTable[domain.Permission](),
}

func tableNames() []string {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func lookupTable(name string) (string, table, error) {
	for _, n := range tableNames() {
		if strings.EqualFold(n, name) {
			return n, tables[n], nil
		}
	}
	return "", table{}, ui.Unknown("entity", name, tableNames())
}

// NewSchemaCommand creates the schema command
func NewSchemaCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [entity]",
		Short: "Print CREATE TABLE statements for the configured dialect",
		Long: `Print the CREATE TABLE statement of one entity, or of every entity when
none is named. No database connection is made.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			name, err := cfg.DialectName()
			if err != nil {
				return err
			}
			d, err := dialect.Get(name)
			if err != nil {
				return err
			}

			names := tableNames()
			if len(args) == 1 {
				n, _, err := lookupTable(args[0])
				if err != nil {
					return err
				}
				names = []string{n}
			}

			out := cmd.OutOrStdout()
			for _, n := range names {
				ddl, err := tables[n].ddl(d)
				if err != nil {
					return fmt.Errorf("%s: %w", n, err)
				}
				fmt.Fprintf(out, "%s;\n", ddl)
			}
			return nil
		},
	}
}

// NewBootstrapCommand creates the bootstrap command
func NewBootstrapCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create every missing table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeadline(cmd, opts, func(ctx context.Context, a *app) error {
				names := tableNames()
				rows := make([][]string, len(names))

				g, gctx := errgroup.WithContext(ctx)
				for i, n := range names {
					i, n := i, n
					g.Go(func() error {
						repo, err := tables[n].open(a.store.Tx, a.store.Dialect,
							crud.WithLogger(a.log), crud.WithoutBootstrap())
						if err != nil {
							return err
						}
						defer repo.Close()

						name := repo.Meta().Table
						status := "exists"
						if !a.store.Dialect.ExistsTable(gctx, a.store.Tx.Querier(gctx), name) {
							status = "created"
						}
						if _, err := repo.CreateIfNotExists(gctx); err != nil {
							return fmt.Errorf("%s: %w", n, err)
						}
						rows[i] = []string{n, name, status}
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}

				t := ui.NewTable(a.out, a.noColor, "Entity", "Table", "Status")
				for _, row := range rows {
					t.AddRow(row...)
				}
				t.Render()
				return nil
			})
		},
	}
}
