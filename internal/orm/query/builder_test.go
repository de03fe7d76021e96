package query

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redochen/ccnetcore/internal/orm/dialect"
)

type Role struct {
	Id        int64
	Uid       string `orm:"length:36;unique"`
	Name      string `orm:"length:50"`
	Code      string `orm:"length:20"`
	Sort      int
	IsDeleted int
	Remark    *string
}

func newBuilder(t *testing.T, name string) *Builder[Role] {
	t.Helper()
	d, err := dialect.Get(name)
	require.NoError(t, err)
	b, err := NewBuilder[Role](d)
	require.NoError(t, err)
	return b
}

func TestSelectOrChain(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)

	pred := AnyOf(&Role{Name: "Admin", Code: "ADMIN"}, "Uid", "Name", "Code")
	plan, err := b.Select(pred, nil, 0, 0)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT Id, Uid, Name, Code, Sort, IsDeleted, Remark FROM Roles WHERE Uid=@Uid OR Name=@Name OR Code=@Code",
		plan.SQL)
	assert.Empty(t, plan.CountSQL)
	assert.Equal(t, []any{sql.Named("Uid", ""), sql.Named("Name", "Admin"), sql.Named("Code", "ADMIN")}, plan.Args)
}

func TestSelectAutoMatch(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)

	t.Run("all default condition matches everything", func(t *testing.T) {
		plan, err := b.Select(Match(&Role{}), nil, 0, 0)
		require.NoError(t, err)
		assert.NotContains(t, plan.SQL, "WHERE")
		assert.Empty(t, plan.Args)
	})

	t.Run("valid fields become equality terms", func(t *testing.T) {
		remark := ""
		plan, err := b.Select(Match(&Role{Name: "Admin", Remark: &remark}), nil, 0, 0)
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, " WHERE Name=@Name AND Remark=@Remark")
		assert.Len(t, plan.Args, 2)
	})

	t.Run("auto match off", func(t *testing.T) {
		plan, err := b.Select(Match(&Role{Name: "Admin"}).WithAutoMatch(false), nil, 0, 0)
		require.NoError(t, err)
		assert.NotContains(t, plan.SQL, "WHERE")
	})

	t.Run("nil predicate", func(t *testing.T) {
		plan, err := b.Select(nil, nil, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, "SELECT Id, Uid, Name, Code, Sort, IsDeleted, Remark FROM Roles", plan.SQL)
	})
}

func TestSelectTemplate(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)

	pred := Template(&Role{Uid: "u1", Name: "Admin", Code: "ADMIN"}, "{0} OR ({1} AND {2})", "Uid", "Name", "Code")
	plan, err := b.Select(pred, nil, 0, 0)
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, " WHERE Uid=@Uid OR (Name=@Name AND Code=@Code)")

	pred = Template(&Role{Name: "Admin"}, "{0} OR {1}", "Name")
	_, err = b.Select(pred, nil, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidPredicate)
}

func TestSelectRaw(t *testing.T) {
	b := newBuilder(t, dialect.Postgres)

	pred := Raw[Role](`"Name"=@name AND "Sort">@min`, map[string]any{"name": "Admin", "min": 3})
	plan, err := b.Select(pred, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "Id", "Uid", "Name", "Code", "Sort", "IsDeleted", "Remark" FROM "Roles" WHERE "Name"=$1 AND "Sort">$2`,
		plan.SQL)
	assert.Equal(t, []any{"Admin", 3}, plan.Args)

	_, err = b.Select(Raw[Role](`"Name"=@nobody`, nil), nil, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidPredicate)
}

func TestSelectPaged(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		b := newBuilder(t, dialect.SQLite)
		plan, err := b.Select(Match(&Role{IsDeleted: 1}), []dialect.Order{dialect.Desc("sort")}, 10, 2)
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT Id, Uid, Name, Code, Sort, IsDeleted, Remark FROM Roles WHERE IsDeleted=@IsDeleted ORDER BY Sort DESC LIMIT 10 OFFSET 20",
			plan.SQL)
		assert.Equal(t, "SELECT COUNT(*) FROM Roles WHERE IsDeleted=@IsDeleted", plan.CountSQL)
	})

	t.Run("sql server injects order", func(t *testing.T) {
		b := newBuilder(t, dialect.SQLServer)
		plan, err := b.Select(nil, nil, 5, 0)
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, "FROM [Roles] ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT 5 ROWS ONLY")
		assert.Equal(t, "SELECT COUNT(*) FROM [Roles]", plan.CountSQL)
	})

	t.Run("negative index disables paging", func(t *testing.T) {
		b := newBuilder(t, dialect.SQLite)
		plan, err := b.Select(nil, nil, 10, -1)
		require.NoError(t, err)
		assert.NotContains(t, plan.SQL, "LIMIT")
		assert.Empty(t, plan.CountSQL)
	})

	t.Run("unknown order column", func(t *testing.T) {
		b := newBuilder(t, dialect.SQLite)
		_, err := b.Select(nil, []dialect.Order{dialect.Asc("Nope")}, 0, 0)
		assert.ErrorIs(t, err, ErrInvalidPredicate)
	})
}

func TestWildcards(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)
	cond := &Role{Name: "Adm"}

	for op, want := range map[dialect.Operator]string{
		dialect.BeginsWith:    "Adm%",
		dialect.EndsWith:      "%Adm",
		dialect.Like:          "%Adm%",
		dialect.NotBeginsWith: "Adm%",
		dialect.Equal:         "Adm",
	} {
		pred := Match(cond, "Name").WithResolver(Operators(map[string]dialect.Operator{"Name": op}))
		plan, err := b.Select(pred, nil, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []any{sql.Named("Name", want)}, plan.Args, op.String())
	}

	assert.Nil(t, WrapPattern(dialect.Like, nil))
	assert.Equal(t, 5, WrapPattern(dialect.Greater, 5))
}

func TestInOperator(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)
	resolver := Operators(map[string]dialect.Operator{"Code": dialect.In})

	plan, err := b.Select(Match(&Role{Code: "A"}, "Code").WithResolver(resolver), nil, 0, 0)
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "WHERE Code IN (@Code_0)")

	plan, err = b.DeleteIn("Id", Values([]int64{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM Roles WHERE Id IN (@Id_0,@Id_1,@Id_2)", plan.SQL)
	assert.Len(t, plan.Args, 3)

	_, err = b.DeleteIn("Id", nil)
	assert.ErrorIs(t, err, ErrInvalidPredicate)
	_, err = b.DeleteIn("Nope", Values([]int{1}))
	assert.ErrorIs(t, err, ErrInvalidPredicate)
}

func TestInExpressionEmpty(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)
	col, _ := b.Meta().Column("Id")
	params := b.Dialect().NewParams()

	assert.Equal(t, "1=0", b.inExpression(col, nil, dialect.In, params))
	assert.Equal(t, "1=1", b.inExpression(col, nil, dialect.NotIn, params))
	assert.Equal(t, 0, params.Len())
}

func TestUpdateSharesParams(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)

	item := &Role{Name: "Renamed", Code: "R"}
	cond := &Role{Name: "Admin"}
	plan, err := b.Update(item, []string{"Name", "Code"}, Match(cond, "Name"))
	require.NoError(t, err)

	assert.Equal(t, "UPDATE Roles SET Name=@Name, Code=@Code WHERE Name=@Name_1", plan.SQL)
	assert.Equal(t, []any{sql.Named("Name", "Renamed"), sql.Named("Code", "R"), sql.Named("Name_1", "Admin")}, plan.Args)
}

func TestUpdatePositional(t *testing.T) {
	b := newBuilder(t, dialect.Postgres)

	item := &Role{Id: 4, Name: "Renamed"}
	plan, err := b.Update(item, []string{"Name"}, Match(item, "Id"))
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "Roles" SET "Name"=$1 WHERE "Id"=$2`, plan.SQL)
	assert.Equal(t, []any{"Renamed", int64(4)}, plan.Args)
}

func TestUpdateAllColumns(t *testing.T) {
	b := newBuilder(t, dialect.MySQL)

	plan, err := b.Update(&Role{Id: 1}, nil, Match(&Role{Id: 1}, "Id"))
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `Roles` SET `Uid`=?, `Name`=?, `Code`=?, `Sort`=?, `IsDeleted`=?, `Remark`=? WHERE `Id`=?", plan.SQL)
}

func TestUpdateRejects(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)

	_, err := b.Update(&Role{}, []string{"Name"}, Match(&Role{}))
	assert.ErrorIs(t, err, ErrUnfiltered)

	_, err = b.Update(nil, nil, Match(&Role{Id: 1}))
	assert.ErrorIs(t, err, ErrInvalidPredicate)

	_, err = b.Update(&Role{}, []string{"Missing"}, Match(&Role{Id: 1}))
	assert.ErrorIs(t, err, ErrInvalidPredicate)

	_, err = b.Delete(nil)
	assert.ErrorIs(t, err, ErrUnfiltered)
}

func TestUpdateIn(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)

	plan, err := b.UpdateIn("Uid", Values([]string{"a", "b"}), &Role{IsDeleted: 1}, []string{"IsDeleted"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE Roles SET IsDeleted=@IsDeleted WHERE Uid IN (@Uid_0,@Uid_1)", plan.SQL)
}

func TestDelete(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)

	plan, err := b.Delete(Match(&Role{Uid: "u1"}, "Uid"))
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM Roles WHERE Uid=@Uid", plan.SQL)
}

func TestCount(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)

	plan, err := b.Count(Match(&Role{Name: "Admin"}))
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM Roles WHERE Name=@Name", plan.SQL)
}

func TestCreateTable(t *testing.T) {
	b := newBuilder(t, dialect.SQLite)
	assert.Equal(t,
		"CREATE TABLE Roles (Id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL, Uid VARCHAR(36) NOT NULL UNIQUE, "+
			"Name VARCHAR(50) NOT NULL, Code VARCHAR(20) NOT NULL, Sort INTEGER NOT NULL, "+
			"IsDeleted INTEGER NOT NULL, Remark TEXT)",
		b.CreateTable())
}
