package crud

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/query"
	"github.com/redochen/ccnetcore/internal/orm/tracking"
	"github.com/redochen/ccnetcore/internal/orm/transaction"
)

type menu struct {
	Uid  string `orm:"key;explicitkey;length:36"`
	Name string
	tracking.Flag
}

var roleColumns = []string{"Uid", "Name", "Code", "Sort", "Remark", "IsDeleted", "UpdatedBy", "UpdatedAt"}

func mockRepo[T any](t *testing.T, opts ...Option) (*Repository[T], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d, err := dialect.Get(dialect.SQLite)
	require.NoError(t, err)
	repo, err := New[T](transaction.NewManager(db), d, append([]Option{WithoutBootstrap()}, opts...)...)
	require.NoError(t, err)
	return repo, mock
}

func TestCreateIfNotExistsSkipsExistingTable(t *testing.T) {
	repo, mock := mockRepo[role](t)

	exists := regexp.QuoteMeta("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=@TableName")
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(exists).WithArgs(sql.Named("TableName", "roles")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	}

	for i := 0; i < 2; i++ {
		ok, err := repo.CreateIfNotExists(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfNotExistsCreatesTable(t *testing.T) {
	repo, mock := mockRepo[role](t)

	mock.ExpectQuery("sqlite_master").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE roles (Uid VARCHAR(36)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.CreateIfNotExists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfNotExistsFailure(t *testing.T) {
	repo, mock := mockRepo[role](t)

	mock.ExpectQuery("sqlite_master").WillReturnError(errors.New("connection refused"))
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	ok, err := repo.CreateIfNotExists(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestBootstrapRetriesUntilTableExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("sqlite_master").WillReturnError(errors.New("database is starting up"))
	mock.ExpectBegin().WillReturnError(errors.New("database is starting up"))
	mock.ExpectQuery("sqlite_master").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	d, err := dialect.Get(dialect.SQLite)
	require.NoError(t, err)
	repo, err := New[role](transaction.NewManager(db), d, WithBootstrap(time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)
	defer repo.Close()

	select {
	case <-repo.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("bootstrap did not finish")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseStopsBootstrap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 100; i++ {
		mock.ExpectQuery("sqlite_master").WillReturnError(errors.New("down"))
		mock.ExpectBegin().WillReturnError(errors.New("down"))
	}

	d, err := dialect.Get(dialect.SQLite)
	require.NoError(t, err)
	repo, err := New[role](transaction.NewManager(db), d, WithBootstrap(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)

	repo.Close()
	repo.Close()
	select {
	case <-repo.Ready():
		t.Fatal("ready closed without a table")
	default:
	}
}

func TestUpdateTrackedCleanIssuesNoSQL(t *testing.T) {
	repo, mock := mockRepo[role](t)

	tr, err := tracking.Track(&role{Uid: "r1", Name: "Admin", Code: "ADMIN"})
	require.NoError(t, err)

	n, err := repo.UpdateTracked(context.Background(), tr)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE roles SET Code=@Code WHERE Uid=@Uid")).
		WithArgs(sql.Named("Code", "ROOT"), sql.Named("Uid", "r1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, tr.SetField("Code", "ROOT"))
	n, err = repo.UpdateTracked(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, tr.IsDirty())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSkipsCleanTrackable(t *testing.T) {
	repo, mock := mockRepo[menu](t)
	m := &menu{Uid: "m1", Name: "Home"}

	n, err := repo.Update(context.Background(), m)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE menus SET Name=@Name WHERE Uid=@Uid")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m.MarkDirty()
	n, err = repo.Update(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, m.IsDirty())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateZeroRowsIsFailure(t *testing.T) {
	repo, mock := mockRepo[role](t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM roles WHERE Uid=@Uid OR (Name=@Name AND Code=@Code)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO roles").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &role{Uid: "r1", Name: "Admin", Code: "ADMIN"}, "Name", "Code")
	assert.ErrorIs(t, err, ErrFailure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProbeErrorFallsThroughToInsert(t *testing.T) {
	repo, mock := mockRepo[role](t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("probe broke"))
	mock.ExpectExec("INSERT INTO roles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), &role{Uid: "r1", Name: "Admin"}, "Name"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModifyZeroRowsIsFailure(t *testing.T) {
	repo, mock := mockRepo[role](t, WithSoftDelete("IsDeleted"))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM roles WHERE Uid=@Uid AND IsDeleted=@IsDeleted")).
		WithArgs(sql.Named("Uid", "r1"), sql.Named("IsDeleted", int64(0))).
		WillReturnRows(sqlmock.NewRows(roleColumns).
			AddRow("r1", "Admin", "ADMIN", 0, nil, 0, "", time.Now()))
	mock.ExpectExec("UPDATE roles SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Modify(context.Background(), &role{Uid: "r1", Code: "ROOT"}, mergeRole, stampRole)
	assert.ErrorIs(t, err, ErrFailure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModifyProbeErrorIsNotFound(t *testing.T) {
	repo, mock := mockRepo[role](t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM roles").WillReturnError(errors.New("timeout"))
	mock.ExpectRollback()

	err := repo.Modify(context.Background(), &role{Uid: "r1"}, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverErrorSurfaces(t *testing.T) {
	repo, mock := mockRepo[role](t)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM roles").WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), &role{Uid: "r1"}, "Uid")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRejectsUnknownSoftDeleteColumn(t *testing.T) {
	d, err := dialect.Get(dialect.SQLite)
	require.NoError(t, err)
	_, err = New[role](transaction.NewManager(nil), d, WithoutBootstrap(), WithSoftDelete("Deleted"))
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = New[role](nil, d)
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")
	repo, mock := mockRepo[role](t, WithMetrics(m))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM roles")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	_, err = repo.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidParam)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("roles", "count", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("roles", "get", "invalid_param")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestConvertDBError(t *testing.T) {
	other := errors.New("other")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ErrAlreadyExists},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, ErrAlreadyExists},
		{"unfiltered", query.ErrUnfiltered, ErrInvalidParam},
		{"already classified", ErrFailure, ErrFailure},
		{"unknown", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ConvertDBError(tt.err), tt.want)
		})
	}
	assert.NoError(t, ConvertDBError(nil))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "identify", Outcome(ErrIdentify))
	assert.Equal(t, "not_found", Outcome(errors.Join(errors.New("x"), ErrNotFound)))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}
