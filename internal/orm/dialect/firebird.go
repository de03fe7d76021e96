package dialect

import "strconv"

// Firebird is the registry name of the Firebird dialect
const Firebird = "firebird"

func init() {
	Register(Firebird, newFirebird, "firebirdsql", "firebird")
}

type firebirdDialect struct {
	*base
}

func newFirebird(o Options) Dialect {
	return &firebirdDialect{base: &base{
		name:        Firebird,
		style:       StyleQuestion,
		openQuote:   `"`,
		closeQuote:  `"`,
		insert:      insertReturning,
		ddlOrder:    []ddlPart{partAuto, partDefault, partNotNull, partKey, partUnique},
		autoKeyword: "GENERATED BY DEFAULT AS IDENTITY",
		types: typeMap{
			Bool:     "BOOLEAN",
			SmallInt: "SMALLINT",
			Int:      "INTEGER",
			BigInt:   "BIGINT",
			Float:    "FLOAT",
			Double:   "DOUBLE PRECISION",
			Time:     "TIMESTAMP",
			Blob:     "BLOB SUB_TYPE BINARY",
			Text:     "BLOB SUB_TYPE TEXT",
			Varchar:  "VARCHAR(%d)",
			Char:     "CHAR(%d)",
			NVarchar: "VARCHAR(%d) CHARACTER SET UTF8",
			NChar:    "CHAR(%d) CHARACTER SET UTF8",
		},
		existsQuery: func(p *Params, table string) string {
			return "SELECT COUNT(*) FROM RDB$RELATIONS WHERE RDB$RELATION_NAME = " + p.Add("TableName", table)
		},
		page: rowsTo,
		log:  o.Logger,
	}}
}

// rowsTo renders Firebird's 1-based inclusive ROWS clause
func rowsTo(size, offset int) string {
	return " ROWS " + strconv.Itoa(offset+1) + " TO " + strconv.Itoa(offset+size)
}
