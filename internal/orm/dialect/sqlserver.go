package dialect

import "strconv"

// SQLServer is the registry name of the Microsoft SQL Server dialect
const SQLServer = "sqlserver"

func init() {
	Register(SQLServer, newSQLServer, "sqlserver", "mssql")
}

type sqlserverDialect struct {
	*base
}

func newSQLServer(o Options) Dialect {
	return &sqlserverDialect{base: &base{
		name:        SQLServer,
		style:       StyleNamed,
		openQuote:   "[",
		closeQuote:  "]",
		insert:      insertOutput,
		ddlOrder:    []ddlPart{partAuto, partNotNull, partKey, partUnique, partDefault},
		autoKeyword: "IDENTITY(1,1)",
		types: typeMap{
			Bool:     "BIT",
			SmallInt: "SMALLINT",
			Int:      "INT",
			BigInt:   "BIGINT",
			Float:    "REAL",
			Double:   "FLOAT",
			Time:     "DATETIME2",
			Blob:     "VARBINARY(MAX)",
			Text:     "VARCHAR(MAX)",
			NText:    "NVARCHAR(MAX)",
			Varchar:  "VARCHAR(%d)",
			Char:     "CHAR(%d)",
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
func (d *sqlserverDialect) DefaultOrderBy() string {
	return " ORDER BY (SELECT NULL)"
}

func offsetFetch(size, offset int) string {
	return " OFFSET " + strconv.Itoa(offset) + " ROWS FETCH NEXT " + strconv.Itoa(size) + " ROWS ONLY"
}
