// Package query turns predicates into dialect-specific SQL and maps result rows back into entities
package query

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/redochen/ccnetcore/internal/orm/dialect"
)

// ErrInvalidPredicate is wrapped by every error caused by a malformed predicate or template
var ErrInvalidPredicate = errors.New("invalid predicate")

// ErrUnfiltered is returned when an UPDATE or DELETE would have no WHERE clause
var ErrUnfiltered = errors.New("statement has no filter")

// Logic joins match terms
type Logic int

const (
	// LogicNone means the terms are substituted into a positional template
	LogicNone Logic = iota
	// LogicAnd joins terms with AND
	LogicAnd
	// LogicOr joins terms with OR
	LogicOr
)

func (l Logic) token() string {
	if l == LogicOr {
		return " OR "
	}
	return " AND "
}

// String returns the SQL keyword of the logic mode
func (l Logic) String() string {
	switch l {
	case LogicAnd:
		return "AND"
	case LogicOr:
		return "OR"
	default:
		return "TEMPLATE"
	}
}

// OperatorResolver picks the comparison for a field. Returning Equal keeps the default.
type OperatorResolver func(field string) dialect.Operator

// Operators returns a resolver backed by a field name map
func Operators(ops map[string]dialect.Operator) OperatorResolver {
	return func(field string) dialect.Operator {
		if op, ok := ops[field]; ok {
			return op
		}
		return dialect.Equal
	}
}

// Predicate describes a WHERE clause over entity type T.
//
// It is in one of three modes:
//   - raw: Template with @name references bound from Params, Condition is nil
//   - chain: Condition with Fields joined by Logic (AND or OR)
//   - template: Condition with Fields substituted into the {n} slots of Template
//
// With no Fields and AutoMatch set, every valid field of Condition becomes a term.
type Predicate[T any] struct {
	Condition *T
	Fields    []string
	Logic     Logic
	Template  string
	Params    map[string]any
	AutoMatch bool
	Resolver  OperatorResolver
}

// Raw builds a predicate from a hand-written WHERE body with @name references
func Raw[T any](template string, params map[string]any) *Predicate[T] {
	return &Predicate[T]{Template: template, Params: params}
}

// Match builds an AND chain over fields of cond. With no fields, every valid field matches.
func Match[T any](cond *T, fields ...string) *Predicate[T] {
	return &Predicate[T]{Condition: cond, Fields: fields, Logic: LogicAnd, AutoMatch: true}
}

// AnyOf builds an OR chain over fields of cond
func AnyOf[T any](cond *T, fields ...string) *Predicate[T] {
	return &Predicate[T]{Condition: cond, Fields: fields, Logic: LogicOr, AutoMatch: true}
}

// Template builds a predicate whose terms fill the {n} slots of template in field order,
// e.g. Template(cond, "{0} OR ({1} AND {2})", "Uid", "Name", "Code")
func Template[T any](cond *T, template string, fields ...string) *Predicate[T] {
	return &Predicate[T]{Condition: cond, Fields: fields, Template: template, AutoMatch: true}
}

// WithResolver sets the per-field operator resolver
func (p *Predicate[T]) WithResolver(r OperatorResolver) *Predicate[T] {
	p.Resolver = r
	return p
}

// WithAutoMatch toggles matching every valid field when no field list is given
func (p *Predicate[T]) WithAutoMatch(on bool) *Predicate[T] {
	p.AutoMatch = on
	return p
}

func (p *Predicate[T]) isRaw() bool {
	return p.Condition == nil && p.Template != ""
}

func (p *Predicate[T]) operator(field string) dialect.Operator {
	if p.Resolver == nil {
		return dialect.Equal
	}
	return p.Resolver(field)
}

// WrapPattern applies the wildcard wrapping of a LIKE-family operator to v.
// Other operators return v unchanged.
func WrapPattern(op dialect.Operator, v any) any {
	if !op.IsLike() || v == nil {
		return v
	}
	s := cast.ToString(v)
	switch op {
	case dialect.BeginsWith, dialect.NotBeginsWith:
		return s + "%"
	case dialect.EndsWith, dialect.NotEndsWith:
		return "%" + s
	default:
		return "%" + s + "%"
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPredicate, fmt.Sprintf(format, args...))
}
