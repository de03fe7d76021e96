package dialect

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/redochen/ccnetcore/internal/orm/schema"
)

// insertMode is how a dialect retrieves a generated key
type insertMode int

const (
	insertLastID    insertMode = iota // sql.Result.LastInsertId
	insertReturning                   // INSERT ... RETURNING key
	insertOutput                      // INSERT ... OUTPUT INSERTED.key VALUES ...
	insertIdentity                    // follow-up SELECT @@IDENTITY
)

// ddlPart is one modifier of a column definition
type ddlPart int

const (
	partKey ddlPart = iota
	partAuto
	partNotNull
	partUnique
	partDefault
)

// base carries the behavior shared by every dialect. Dialects configure it and
// override the few methods whose syntax differs.
type base struct {
	name          string
	style         ParamStyle
	openQuote     string
	closeQuote    string
	quoteIfNeeded bool
	insert        insertMode
	ddlOrder      []ddlPart
	autoKeyword   string
	types         typeMap
	existsQuery   func(p *Params, table string) string
	page          func(size, offset int) string
	log           *zap.Logger
}

func (b *base) Name() string { return b.name }

func (b *base) NewParams() *Params { return NewParams(b.style) }

func (b *base) Quote(ident string) string {
	if b.quoteIfNeeded && isPlainIdent(ident) {
		return ident
	}
	escaped := strings.ReplaceAll(ident, b.closeQuote, b.closeQuote+b.closeQuote)
	return b.openQuote + escaped + b.closeQuote
}

func (b *base) ExistsTable(ctx context.Context, q Querier, table string) bool {
	p := b.NewParams()
	query := b.existsQuery(p, table)

	var n int
	if err := q.QueryRowContext(ctx, query, p.Args()...).Scan(&n); err != nil {
		b.log.Warn("table existence check failed",
			zap.String("dialect", b.name),
			zap.String("table", table),
			zap.Error(err))
		return false
	}
	return n > 0
}

func (b *base) AppendColumnName(sb *strings.Builder, col *schema.Column) {
	sb.WriteString(b.Quote(col.Name))
}

func (b *base) AppendColumnDefinition(sb *strings.Builder, col *schema.Column) {
	b.AppendColumnName(sb, col)
	sb.WriteByte(' ')
	sb.WriteString(b.types.columnType(col))

	auto := col.Has(schema.FlagAutoIncrement)
	for _, part := range b.ddlOrder {
		switch part {
		case partKey:
			if col.IsKey() {
				sb.WriteString(" PRIMARY KEY")
			}
		case partAuto:
			if auto && b.autoKeyword != "" {
				sb.WriteString(" " + b.autoKeyword)
			}
		case partNotNull:
			if !col.Nullable() {
				sb.WriteString(" NOT NULL")
			}
		case partUnique:
			if col.Has(schema.FlagUnique) && !col.IsKey() {
				sb.WriteString(" UNIQUE")
			}
		case partDefault:
			if col.Default != "" {
				sb.WriteString(" DEFAULT " + col.Default)
			}
		}
	}
}

func (b *base) GetColumnMatchExpression(col *schema.Column, ref string, op Operator) string {
	return b.Quote(col.Name) + op.token() + ref
}

func (b *base) GetOrderBySql(orders []Order) string {
	if len(orders) == 0 {
		return ""
	}
	terms := make([]string, len(orders))
	for i, o := range orders {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms[i] = b.Quote(o.Column) + " " + dir
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func (b *base) GetPageQuerySql(size, index int) string {
	if size <= 0 || index < 0 || b.page == nil {
		return ""
	}
	return b.page(size, size*index)
}

func (b *base) Insert(ctx context.Context, q Querier, meta *schema.Metadata, entity any) (int64, error) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return 0, fmt.Errorf("insert %s: entity must be a pointer to struct, got %T", meta.Table, entity)
	}
	sv := rv.Elem()

	key, _ := meta.Key()
	writeBack := key != nil && key.Has(schema.FlagKey) && !key.Has(schema.FlagExplicitKey) && !key.Valid(sv)

	p := b.NewParams()
	var cols, refs []string
	for _, c := range meta.Writable() {
		if writeBack && c == key {
			continue
		}
		val, err := c.DBValue(sv)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", meta.Table, err)
		}
		cols = append(cols, b.Quote(c.Name))
		refs = append(refs, p.Add(c.Name, val))
	}

	table := b.Quote(meta.Table)
	var head, values string
	if len(cols) == 0 {
		head = "INSERT INTO " + table
		values = " DEFAULT VALUES"
	} else {
		head = "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ")"
		values = " VALUES (" + strings.Join(refs, ", ") + ")"
	}

	if !writeBack {
		res, err := q.ExecContext(ctx, head+values, p.Args()...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}

	var id any
	switch b.insert {
	case insertReturning:
		query := head + values + " RETURNING " + b.Quote(key.Name)
		if err := q.QueryRowContext(ctx, query, p.Args()...).Scan(&id); err != nil {
			return 0, err
		}
	case insertOutput:
		query := head + " OUTPUT INSERTED." + b.Quote(key.Name) + values
		if err := q.QueryRowContext(ctx, query, p.Args()...).Scan(&id); err != nil {
			return 0, err
		}
	case insertIdentity:
		res, err := q.ExecContext(ctx, head+values, p.Args()...)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return 0, nil
		}
		if err := q.QueryRowContext(ctx, "SELECT @@IDENTITY").Scan(&id); err != nil {
			return 0, err
		}
	default:
		res, err := q.ExecContext(ctx, head+values, p.Args()...)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return n, err
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	}

	if err := setKey(key.FieldValue(sv), id); err != nil {
		return 0, fmt.Errorf("insert %s: write back %s: %w", meta.Table, key.Field, err)
	}
	return 1, nil
}

// setKey assigns a driver-returned key to the key field
func setKey(field reflect.Value, id any) error {
	if b, ok := id.([]byte); ok {
		id = string(b)
	}
	if field.Kind() == reflect.Ptr {
		field.Set(reflect.New(field.Type().Elem()))
		field = field.Elem()
	}
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(id)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(id)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.String:
		s, err := cast.ToStringE(id)
		if err != nil {
			return err
		}
		field.SetString(s)
	default:
		return fmt.Errorf("unsupported key kind %s", field.Kind())
	}
	return nil
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	_, reserved := reservedWords[strings.ToUpper(s)]
	return !reserved
}

var reservedWords = map[string]struct{}{
	"ADD": {}, "ALL": {}, "ALTER": {}, "AND": {}, "AS": {}, "ASC": {}, "BETWEEN": {}, "BY": {},
	"CASE": {}, "CHECK": {}, "COLUMN": {}, "CONSTRAINT": {}, "CREATE": {}, "DEFAULT": {},
	"DELETE": {}, "DESC": {}, "DISTINCT": {}, "DROP": {}, "ELSE": {}, "END": {}, "EXISTS": {},
	"FROM": {}, "GROUP": {}, "HAVING": {}, "IN": {}, "INDEX": {}, "INSERT": {}, "INTO": {},
	"IS": {}, "JOIN": {}, "KEY": {}, "LIKE": {}, "LIMIT": {}, "NOT": {}, "NULL": {}, "OFFSET": {},
	"ON": {}, "OR": {}, "ORDER": {}, "PRIMARY": {}, "REFERENCES": {}, "SELECT": {}, "SET": {},
	"TABLE": {}, "THEN": {}, "TO": {}, "UNION": {}, "UNIQUE": {}, "UPDATE": {}, "VALUES": {},
	"WHEN": {}, "WHERE": {},
}
