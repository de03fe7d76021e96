package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/schema"
)

// Plan is the SQL text and arguments of one statement. CountSQL is set only for
// paged selects and shares Args with SQL.
type Plan struct {
	SQL      string
	CountSQL string
	Args     []any
}

// Builder renders statements for entity type T in one dialect
type Builder[T any] struct {
	d    dialect.Dialect
	meta *schema.Metadata
}

// NewBuilder returns a builder for T, building T's metadata on first use
func NewBuilder[T any](d dialect.Dialect) (*Builder[T], error) {
	if d == nil {
		return nil, fmt.Errorf("query: dialect is required")
	}
	meta, err := schema.Of[T]()
	if err != nil {
		return nil, err
	}
	return &Builder[T]{d: d, meta: meta}, nil
}

// Meta returns the metadata of T
func (b *Builder[T]) Meta() *schema.Metadata { return b.meta }

// Dialect returns the dialect the builder renders for
func (b *Builder[T]) Dialect() dialect.Dialect { return b.d }

// Select renders a SELECT of every mapped column. size and index page the result when
// size > 0 and index >= 0, in which case CountSQL counts the unpaged rows.
func (b *Builder[T]) Select(pred *Predicate[T], orders []dialect.Order, size, index int) (*Plan, error) {
	params := b.d.NewParams()
	where, err := b.where(pred, params)
	if err != nil {
		return nil, err
	}

	orderBy, err := b.orderBy(orders)
	if err != nil {
		return nil, err
	}
	paging := b.d.GetPageQuerySql(size, index)
	if paging != "" && orderBy == "" {
		if po, ok := b.d.(dialect.PagingOrderer); ok {
			orderBy = po.DefaultOrderBy()
		}
	}

	from := " FROM " + b.d.Quote(b.meta.Table) + where
	plan := &Plan{
		SQL:  "SELECT " + b.columnList() + from + orderBy + paging,
		Args: params.Args(),
	}
	if paging != "" {
		plan.CountSQL = "SELECT COUNT(*)" + from
	}
	return plan, nil
}

// Count renders SELECT COUNT(*) over the predicate
func (b *Builder[T]) Count(pred *Predicate[T]) (*Plan, error) {
	params := b.d.NewParams()
	where, err := b.where(pred, params)
	if err != nil {
		return nil, err
	}
	return &Plan{
		SQL:  "SELECT COUNT(*) FROM " + b.d.Quote(b.meta.Table) + where,
		Args: params.Args(),
	}, nil
}

// Update renders an UPDATE setting setFields from item, filtered by pred.
// With no setFields every writable non-key column is set.
func (b *Builder[T]) Update(item *T, setFields []string, pred *Predicate[T]) (*Plan, error) {
	params := b.d.NewParams()
	set, err := b.set(item, setFields, params)
	if err != nil {
		return nil, err
	}
	where, err := b.where(pred, params)
	if err != nil {
		return nil, err
	}
	if where == "" {
		return nil, fmt.Errorf("update %s: %w", b.meta.Table, ErrUnfiltered)
	}
	return &Plan{
		SQL:  "UPDATE " + b.d.Quote(b.meta.Table) + " SET " + set + where,
		Args: params.Args(),
	}, nil
}

// UpdateIn renders an UPDATE of the rows whose field is one of values
func (b *Builder[T]) UpdateIn(field string, values []any, item *T, setFields []string) (*Plan, error) {
	col, ok := b.meta.Column(field)
	if !ok {
		return nil, invalidf("%s has no column %q", b.meta.Type.Name(), field)
	}
	if len(values) == 0 {
		return nil, invalidf("update %s: empty value list for %s", b.meta.Table, field)
	}

	params := b.d.NewParams()
	set, err := b.set(item, setFields, params)
	if err != nil {
		return nil, err
	}
	return &Plan{
		SQL:  "UPDATE " + b.d.Quote(b.meta.Table) + " SET " + set + " WHERE " + b.inExpression(col, values, dialect.In, params),
		Args: params.Args(),
	}, nil
}

// Delete renders a DELETE filtered by pred
func (b *Builder[T]) Delete(pred *Predicate[T]) (*Plan, error) {
	params := b.d.NewParams()
	where, err := b.where(pred, params)
	if err != nil {
		return nil, err
	}
	if where == "" {
		return nil, fmt.Errorf("delete %s: %w", b.meta.Table, ErrUnfiltered)
	}
	return &Plan{
		SQL:  "DELETE FROM " + b.d.Quote(b.meta.Table) + where,
		Args: params.Args(),
	}, nil
}

// DeleteIn renders a DELETE of the rows whose field is one of values
func (b *Builder[T]) DeleteIn(field string, values []any) (*Plan, error) {
	col, ok := b.meta.Column(field)
	if !ok {
		return nil, invalidf("%s has no column %q", b.meta.Type.Name(), field)
	}
	if len(values) == 0 {
		return nil, invalidf("delete %s: empty value list for %s", b.meta.Table, field)
	}
	params := b.d.NewParams()
	return &Plan{
		SQL:  "DELETE FROM " + b.d.Quote(b.meta.Table) + " WHERE " + b.inExpression(col, values, dialect.In, params),
		Args: params.Args(),
	}, nil
}

// CreateTable renders the CREATE TABLE statement for T
func (b *Builder[T]) CreateTable() string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(b.d.Quote(b.meta.Table))
	sb.WriteString(" (")
	for i, col := range b.meta.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		b.d.AppendColumnDefinition(&sb, col)
	}
	sb.WriteString(")")
	return sb.String()
}

func (b *Builder[T]) columnList() string {
	var sb strings.Builder
	for i, col := range b.meta.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		b.d.AppendColumnName(&sb, col)
	}
	return sb.String()
}

func (b *Builder[T]) orderBy(orders []dialect.Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	resolved := make([]dialect.Order, len(orders))
	for i, o := range orders {
		col, ok := b.meta.Column(o.Column)
		if !ok {
			return "", invalidf("cannot order %s by unknown column %q", b.meta.Table, o.Column)
		}
		resolved[i] = dialect.Order{Column: col.Name, Desc: o.Desc}
	}
	return b.d.GetOrderBySql(resolved), nil
}

// set renders the SET list. It runs before where so WHERE parameters that
// repeat a column name get a suffixed name.
func (b *Builder[T]) set(item *T, fields []string, params *dialect.Params) (string, error) {
	if item == nil {
		return "", invalidf("update %s: item is nil", b.meta.Table)
	}
	var cols []*schema.Column
	if len(fields) == 0 {
		for _, c := range b.meta.Writable() {
			if !c.IsKey() {
				cols = append(cols, c)
			}
		}
	} else {
		found, err := b.meta.Lookup(fields...)
		if err != nil {
			return "", invalidf("%v", err)
		}
		for _, c := range found {
			if !c.Writable() {
				return "", invalidf("column %s of %s is not writable", c.Name, b.meta.Table)
			}
		}
		cols = found
	}
	if len(cols) == 0 {
		return "", invalidf("update %s: nothing to set", b.meta.Table)
	}

	v := reflect.ValueOf(item).Elem()
	terms := make([]string, len(cols))
	for i, c := range cols {
		val, err := c.DBValue(v)
		if err != nil {
			return "", err
		}
		terms[i] = b.d.Quote(c.Name) + "=" + params.Add(c.Name, val)
	}
	return strings.Join(terms, ", "), nil
}

// where renders " WHERE ..." for pred, or "" when the predicate matches everything
func (b *Builder[T]) where(pred *Predicate[T], params *dialect.Params) (string, error) {
	if pred == nil {
		return "", nil
	}
	if pred.isRaw() {
		body, err := params.Bind(pred.Template, pred.Params)
		if err != nil {
			return "", invalidf("%v", err)
		}
		return " WHERE " + body, nil
	}
	if pred.Condition == nil {
		return "", nil
	}

	cols, err := b.matchColumns(pred)
	if err != nil {
		return "", err
	}

	cond := reflect.ValueOf(pred.Condition).Elem()
	exprs := make([]string, 0, len(cols))
	for _, col := range cols {
		op := pred.operator(col.Field)
		expr, err := b.matchExpression(col, cond, op, params)
		if err != nil {
			return "", err
		}
		exprs = append(exprs, expr)
	}

	if pred.Logic == LogicNone && pred.Template != "" {
		tpl, err := ParseTemplate(pred.Template)
		if err != nil {
			return "", err
		}
		body, err := tpl.Render(exprs)
		if err != nil {
			return "", err
		}
		return " WHERE " + body, nil
	}
	if len(exprs) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(exprs, pred.Logic.token()), nil
}

func (b *Builder[T]) matchColumns(pred *Predicate[T]) ([]*schema.Column, error) {
	if len(pred.Fields) > 0 {
		cols, err := b.meta.Lookup(pred.Fields...)
		if err != nil {
			return nil, invalidf("%v", err)
		}
		return cols, nil
	}
	if !pred.AutoMatch {
		return nil, nil
	}
	cond := reflect.ValueOf(pred.Condition).Elem()
	var cols []*schema.Column
	for _, col := range b.meta.Columns {
		if col.Valid(cond) {
			cols = append(cols, col)
		}
	}
	return cols, nil
}

func (b *Builder[T]) matchExpression(col *schema.Column, cond reflect.Value, op dialect.Operator, params *dialect.Params) (string, error) {
	if op.IsSet() {
		return b.inExpression(col, setValues(col.FieldValue(cond)), op, params), nil
	}
	val, err := col.DBValue(cond)
	if err != nil {
		return "", err
	}
	ref := params.Add(col.Name, WrapPattern(op, val))
	return b.d.GetColumnMatchExpression(col, ref, op), nil
}

// inExpression expands values into one parameter each. An empty In matches nothing
// and an empty NotIn matches everything.
func (b *Builder[T]) inExpression(col *schema.Column, values []any, op dialect.Operator, params *dialect.Params) string {
	if len(values) == 0 {
		if op == dialect.NotIn {
			return "1=1"
		}
		return "1=0"
	}
	refs := make([]string, len(values))
	for i, v := range values {
		refs[i] = params.Add(col.Name+"_"+strconv.Itoa(i), v)
	}
	return b.d.GetColumnMatchExpression(col, "("+strings.Join(refs, ",")+")", op)
}

// setValues flattens a slice field into a value list; scalars become a one-element list
func setValues(v reflect.Value) []any {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && v.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]any, v.Len())
		for i := range out {
			out[i] = v.Index(i).Interface()
		}
		return out
	}
	return []any{v.Interface()}
}

// Values converts a typed slice into the []any form taken by UpdateIn and DeleteIn
func Values[V any](in []V) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
