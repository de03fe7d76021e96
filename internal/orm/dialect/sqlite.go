package dialect

// SQLite is the registry name of the SQLite dialect
const SQLite = "sqlite"

func init() {
	Register(SQLite, newSQLite, "sqlite", "sqlite3")
}

type sqliteDialect struct {
	*base
}

func newSQLite(o Options) Dialect {
	return &sqliteDialect{base: &base{
		name:          SQLite,
		style:         StyleNamed,
		openQuote:     `"`,
		closeQuote:    `"`,
		quoteIfNeeded: true,
		insert:        insertLastID,
		ddlOrder:      []ddlPart{partKey, partAuto, partNotNull, partUnique, partDefault},
		autoKeyword:   "AUTOINCREMENT",
		types: typeMap{
			Bool:     "INTEGER",
			SmallInt: "INTEGER",
			Int:      "INTEGER",
			BigInt:   "INTEGER",
			Float:    "REAL",
			Double:   "REAL",
			Time:     "DATETIME",
			Blob:     "BLOB",
			Text:     "TEXT",
			Varchar:  "VARCHAR(%d)",
			Char:     "CHAR(%d)",
			NVarchar: "NVARCHAR(%d)",
			NChar:    "NCHAR(%d)",
		},
		existsQuery: func(p *Params, table string) string {
			return "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=" + p.Add("TableName", table)
		},
		page: limitOffset,
		log:  o.Logger,
	}}
}
