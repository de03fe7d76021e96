package dialect

// MySQL is the registry name of the MySQL dialect
const MySQL = "mysql"

func init() {
	Register(MySQL, newMySQL, "mysql")
}

type mysqlDialect struct {
	*base
}

func newMySQL(o Options) Dialect {
	return &mysqlDialect{base: &base{
		name:        MySQL,
		style:       StyleQuestion,
		openQuote:   "`",
		closeQuote:  "`",
		insert:      insertLastID,
		ddlOrder:    []ddlPart{partNotNull, partAuto, partDefault, partKey, partUnique},
		autoKeyword: "AUTO_INCREMENT",
		types: typeMap{
			Bool:     "TINYINT(1)",
			SmallInt: "SMALLINT",
			Int:      "INT",
			BigInt:   "BIGINT",
			Float:    "FLOAT",
			Double:   "DOUBLE",
			Time:     "DATETIME",
			Blob:     "LONGBLOB",
			Text:     "LONGTEXT",
			Varchar:  "VARCHAR(%d)",
			Char:     "CHAR(%d)",
			NVarchar: "VARCHAR(%d) CHARACTER SET utf8mb4",
			NChar:    "CHAR(%d) CHARACTER SET utf8mb4",
		},
		existsQuery: func(p *Params, table string) string {
			return "SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = " +
				p.Add("TableName", table)
		},
		page: limitOffset,
		log:  o.Logger,
	}}
}
