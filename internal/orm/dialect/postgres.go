package dialect

import "strconv"

// Postgres is the registry name of the PostgreSQL dialect
const Postgres = "postgres"

func init() {
	Register(Postgres, newPostgres, "pgx", "postgres", "postgresql")
}

type postgresDialect struct {
	*base
}

func newPostgres(o Options) Dialect {
	return &postgresDialect{base: &base{
		name:       Postgres,
		style:      StyleDollar,
		openQuote:  `"`,
		closeQuote: `"`,
		insert:     insertReturning,
		ddlOrder:   []ddlPart{partNotNull, partDefault, partKey, partUnique},
		types: typeMap{
			Bool:         "BOOLEAN",
			SmallInt:     "SMALLINT",
			Int:          "INTEGER",
			BigInt:       "BIGINT",
			Float:        "REAL",
			Double:       "DOUBLE PRECISION",
			Time:         "TIMESTAMP",
			Blob:         "BYTEA",
			Text:         "TEXT",
			Varchar:      "VARCHAR(%d)",
			Char:         "CHAR(%d)",
			NVarchar:     "VARCHAR(%d)",
			NChar:        "CHAR(%d)",
			SerialInt:    "SERIAL",
			SerialBigInt: "BIGSERIAL",
		},
		existsQuery: func(p *Params, table string) string {
			return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = " +
				p.Add("TableName", table)
		},
		page: limitOffset,
		log:  o.Logger,
	}}
}

func limitOffset(size, offset int) string {
	return " LIMIT " + strconv.Itoa(size) + " OFFSET " + strconv.Itoa(offset)
}
