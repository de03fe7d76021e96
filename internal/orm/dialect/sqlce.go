package dialect

// SQLCE is the registry name of the SQL Server Compact dialect
const SQLCE = "sqlce"

func init() {
	Register(SQLCE, newSQLCE, "sqlce")
}

// sqlceDialect follows SQL Server syntax but has no OUTPUT clause and no MAX types
type sqlceDialect struct {
	*base
}

func newSQLCE(o Options) Dialect {
	return &sqlceDialect{base: &base{
		name:        SQLCE,
		style:       StyleNamed,
		openQuote:   "[",
		closeQuote:  "]",
		insert:      insertIdentity,
		ddlOrder:    []ddlPart{partAuto, partNotNull, partKey, partUnique, partDefault},
		autoKeyword: "IDENTITY(1,1)",
		types: typeMap{
			Bool:     "BIT",
			SmallInt: "SMALLINT",
			Int:      "INT",
			BigInt:   "BIGINT",
			Float:    "REAL",
			Double:   "FLOAT",
			Time:     "DATETIME",
			Blob:     "IMAGE",
			Text:     "NTEXT",
			Varchar:  "NVARCHAR(%d)",
			Char:     "NCHAR(%d)",
			NVarchar: "NVARCHAR(%d)",
			NChar:    "NCHAR(%d)",
		},
		existsQuery: func(p *Params, table string) string {
			return "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = " + p.Add("TableName", table)
		},
		page: offsetFetch,
		log:  o.Logger,
	}}
}

// DefaultOrderBy implements PagingOrderer
func (d *sqlceDialect) DefaultOrderBy() string {
	return " ORDER BY (SELECT NULL)"
}
