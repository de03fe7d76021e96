// Package dialect renders SQL for a specific backing store.
// Each store gets one Dialect implementation, selected once per connection by name.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/redochen/ccnetcore/internal/orm/schema"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Operator is a column comparison in a WHERE term
type Operator int

const (
	Equal Operator = iota
	NotEqual
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
	In
	NotIn
	Like
	NotLike
	BeginsWith
	NotBeginsWith
	EndsWith
	NotEndsWith
)

var operatorNames = [...]string{
	Equal:          "Equal",
	NotEqual:       "NotEqual",
	Greater:        "Greater",
	GreaterOrEqual: "GreaterOrEqual",
	Less:           "Less",
	LessOrEqual:    "LessOrEqual",
	In:             "In",
	NotIn:          "NotIn",
	Like:           "Like",
	NotLike:        "NotLike",
	BeginsWith:     "BeginsWith",
	NotBeginsWith:  "NotBeginsWith",
	EndsWith:       "EndsWith",
	NotEndsWith:    "NotEndsWith",
}

// String returns the operator name
func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return fmt.Sprintf("Operator(%d)", int(o))
	}
	return operatorNames[o]
}

// ParseOperator resolves an operator by name, case-insensitively
func ParseOperator(name string) (Operator, error) {
	for i, n := range operatorNames {
		if strings.EqualFold(n, name) {
			return Operator(i), nil
		}
	}
	return Equal, fmt.Errorf("unknown operator %q", name)
}

// IsLike reports whether the operator renders as LIKE or NOT LIKE
func (o Operator) IsLike() bool {
	return o >= Like && o <= NotEndsWith
}

// IsSet reports whether the operator takes a list of values
func (o Operator) IsSet() bool {
	return o == In || o == NotIn
}

// Negated reports whether the operator excludes matches
func (o Operator) Negated() bool {
	switch o {
	case NotEqual, NotIn, NotLike, NotBeginsWith, NotEndsWith:
		return true
	}
	return false
}

// token returns the SQL text between column and parameter
func (o Operator) token() string {
	switch o {
	case NotEqual:
		return "<>"
	case Greater:
		return ">"
	case GreaterOrEqual:
		return ">="
	case Less:
		return "<"
	case LessOrEqual:
		return "<="
	case In:
		return " IN "
	case NotIn:
		return " NOT IN "
	case Like, BeginsWith, EndsWith:
		return " LIKE "
	case NotLike, NotBeginsWith, NotEndsWith:
		return " NOT LIKE "
	default:
		return "="
	}
}

// Order is one ORDER BY term. Column is the database column name.
type Order struct {
	Column string
	Desc   bool
}

// Asc orders by column ascending
func Asc(column string) Order { return Order{Column: column} }

// Desc orders by column descending
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// Dialect is the store-specific SQL capability set
type Dialect interface {
	// Name returns the registry name of the dialect
	Name() string

	// Quote returns ident quoted for this store
	Quote(ident string) string

	// NewParams returns an empty parameter bag using this store's placeholder style
	NewParams() *Params

	// ExistsTable reports whether table exists. Query failures are logged and reported as false.
	ExistsTable(ctx context.Context, q Querier, table string) bool

	// AppendColumnName writes the quoted column name
	AppendColumnName(sb *strings.Builder, col *schema.Column)

	// AppendColumnDefinition writes the DDL fragment for one column
	AppendColumnDefinition(sb *strings.Builder, col *schema.Column)

	// GetColumnMatchExpression renders a single WHERE term. For In and NotIn, ref is
	// the parenthesized list of parameter references.
	GetColumnMatchExpression(col *schema.Column, ref string, op Operator) string

	// Insert writes entity, a pointer to a struct described by meta. When the key is
	// generated and unset, the new key is written back into the entity.
	Insert(ctx context.Context, q Querier, meta *schema.Metadata, entity any) (int64, error)

	// GetOrderBySql renders an ORDER BY clause with a leading space, or "" for no terms
	GetOrderBySql(orders []Order) string

	// GetPageQuerySql renders the paging clause with a leading space. It is empty
	// unless size > 0 and index >= 0. Pages are 0-based.
	GetPageQuerySql(size, index int) string
}

// PagingOrderer is implemented by dialects whose paging clause is only valid after ORDER BY
type PagingOrderer interface {
	// DefaultOrderBy returns the ORDER BY clause used when paging without explicit ordering
	DefaultOrderBy() string
}

// Options configures a dialect instance
type Options struct {
	Logger *zap.Logger
}

// Option mutates Options
type Option func(*Options)

// WithLogger sets the logger used for swallowed query failures
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func buildOptions(opts []Option) Options {
	o := Options{Logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
