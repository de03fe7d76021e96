package dialect

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/redochen/ccnetcore/internal/orm/schema"
)

// typeMap maps Go field types to column types for one dialect.
// Sized formats take the column length.
type typeMap struct {
	Bool     string
	SmallInt string
	Int      string
	BigInt   string
	Float    string
	Double   string
	Time     string
	Blob     string
	Text     string
	NText    string
	Varchar  string
	Char     string
	NVarchar string
	NChar    string

	// SerialInt and SerialBigInt replace the integer type of auto-increment columns
	SerialInt    string
	SerialBigInt string
}

// defaultKeyLength sizes string keys and unique strings declared without a length
const defaultKeyLength = 255

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))

	nullTypes = map[reflect.Type]reflect.Type{
		reflect.TypeOf(sql.NullString{}):  reflect.TypeOf(""),
		reflect.TypeOf(sql.NullInt64{}):   reflect.TypeOf(int64(0)),
		reflect.TypeOf(sql.NullInt32{}):   reflect.TypeOf(int32(0)),
		reflect.TypeOf(sql.NullInt16{}):   reflect.TypeOf(int16(0)),
		reflect.TypeOf(sql.NullByte{}):    reflect.TypeOf(byte(0)),
		reflect.TypeOf(sql.NullFloat64{}): reflect.TypeOf(float64(0)),
		reflect.TypeOf(sql.NullBool{}):    reflect.TypeOf(false),
		reflect.TypeOf(sql.NullTime{}):    timeType,
	}
)

func (m typeMap) columnType(col *schema.Column) string {
	if col.TypeName != "" {
		upper := strings.ToUpper(col.TypeName)
		if col.Length > 0 && !strings.Contains(upper, "(") &&
			(strings.Contains(upper, "CHAR") || strings.Contains(upper, "BINARY")) {
			return fmt.Sprintf("%s(%d)", col.TypeName, col.Length)
		}
		return col.TypeName
	}

	t := col.Type
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if under, ok := nullTypes[t]; ok {
		t = under
	}

	if col.Converter != nil {
		if _, ok := col.Converter.(schema.MsgpackConverter); ok {
			return m.Blob
		}
		return m.stringType(col)
	}

	auto := col.Has(schema.FlagAutoIncrement)
	switch t.Kind() {
	case reflect.String:
		return m.stringType(col)
	case reflect.Bool:
		return m.Bool
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		if auto && m.SerialInt != "" {
			return m.SerialInt
		}
		return m.SmallInt
	case reflect.Int32, reflect.Uint16:
		if auto && m.SerialInt != "" {
			return m.SerialInt
		}
		return m.Int
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		if auto && m.SerialBigInt != "" {
			return m.SerialBigInt
		}
		return m.BigInt
	case reflect.Float32:
		return m.Float
	case reflect.Float64:
		return m.Double
	}
	if t == timeType {
		return m.Time
	}
	if t == bytesType {
		return m.Blob
	}
	return m.Text
}

func (m typeMap) stringType(col *schema.Column) string {
	n := col.Length
	if n == 0 && (col.IsKey() || col.Has(schema.FlagUnique)) {
		n = defaultKeyLength
	}
	unicode := col.Has(schema.FlagUnicode)
	if n == 0 {
		if unicode && m.NText != "" {
			return m.NText
		}
		return m.Text
	}

	format := m.Varchar
	switch {
	case col.Has(schema.FlagFixed) && unicode:
		format = m.NChar
	case col.Has(schema.FlagFixed):
		format = m.Char
	case unicode:
		format = m.NVarchar
	}
	if strings.Contains(format, "%d") {
		return fmt.Sprintf(format, n)
	}
	return format
}
