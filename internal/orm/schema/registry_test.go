package schema

import (
	"database/sql"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type audit struct {
	CreatedAt time.Time
	UpdatedBy string `orm:"length:36"`
}

type account struct {
	audit
	Uid      string          `orm:"explicitkey;length:36;fixed;order:-1"`
	Name     string          `orm:"length:50;unicode;required;unique"`
	Email    sql.NullString  `orm:"column:MailAddress;length:128"`
	Age      *int
	Profile  map[string]any  `orm:"converter:json"`
	Cache    string          `orm:"-"`
	Computed string          `orm:"readonly"`
	internal int
}

type widget struct {
	ID   int64 `orm:"auto"`
	Name string
}

func (widget) TableName() string { return "tbl_widget" }

type keyless struct {
	Name string
}

type twoKeys struct {
	A string `orm:"key"`
	B string `orm:"key"`
}

func TestOfBuildsColumns(t *testing.T) {
	meta, err := Of[account]()
	require.NoError(t, err)

	assert.Equal(t, "accounts", meta.Table)

	names := make([]string, 0, len(meta.Columns))
	for _, c := range meta.Columns {
		names = append(names, c.Name)
	}
	// Uid sorts first by order, the rest keep declaration order with the embedded fields leading
	assert.Equal(t, []string{"Uid", "CreatedAt", "UpdatedBy", "Name", "MailAddress", "Age", "Profile", "Computed"}, names)

	key, err := meta.Key()
	require.NoError(t, err)
	assert.Equal(t, "Uid", key.Name)
	assert.True(t, key.Has(FlagExplicitKey|FlagFixed))
	assert.Equal(t, 36, key.Length)

	name, ok := meta.Column("name")
	require.True(t, ok)
	assert.True(t, name.Has(FlagUnicode|FlagRequired|FlagUnique))
	assert.False(t, name.Nullable())

	email, ok := meta.Column("mailaddress")
	require.True(t, ok)
	assert.Equal(t, "Email", email.Field)
	assert.True(t, email.Nullable())

	byField, ok := meta.Column("Email")
	require.True(t, ok)
	assert.Same(t, email, byField)

	_, ok = meta.Column("Cache")
	assert.False(t, ok)

	computed, _ := meta.Column("Computed")
	assert.False(t, computed.Writable())
	assert.Len(t, meta.Writable(), len(meta.Columns)-1)

	profile, _ := meta.Column("Profile")
	assert.IsType(t, JSONConverter{}, profile.Converter)
}

func TestOfIsIdempotent(t *testing.T) {
	first, err := Of[account]()
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Metadata, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = For(reflect.TypeOf(&account{}))
		}(i)
	}
	wg.Wait()

	for _, m := range results {
		require.NotNil(t, m)
		assert.Equal(t, len(first.Columns), len(m.Columns))
		for i := range m.Columns {
			assert.Equal(t, first.Columns[i].Name, m.Columns[i].Name)
			assert.Equal(t, first.Columns[i].Flags, m.Columns[i].Flags)
		}
	}
}

func TestKeyResolution(t *testing.T) {
	t.Run("id fallback", func(t *testing.T) {
		meta, err := Of[widget]()
		require.NoError(t, err)
		assert.Equal(t, "tbl_widget", meta.Table)

		key, err := meta.Key()
		require.NoError(t, err)
		assert.Equal(t, "ID", key.Field)
		assert.True(t, key.Has(FlagAutoIncrement))
	})

	t.Run("no key only fails key lookup", func(t *testing.T) {
		meta, err := Of[keyless]()
		require.NoError(t, err)
		assert.Len(t, meta.Columns, 1)

		_, err = meta.Key()
		assert.ErrorIs(t, err, ErrNoKey)
	})

	t.Run("two keys", func(t *testing.T) {
		meta, err := Of[twoKeys]()
		require.NoError(t, err)

		_, err = meta.Key()
		assert.ErrorIs(t, err, ErrMultipleKeys)
	})
}

func TestRegisterOverrides(t *testing.T) {
	type gadget struct {
		Code string
		Note string
	}
	defer Forget(reflect.TypeOf(gadget{}))

	meta, err := Register[gadget](
		WithTable("Gadget"),
		WithColumn("Code", func(c *Column) { c.Flags |= FlagExplicitKey; c.Length = 8 }),
		WithColumn("Note", func(c *Column) { c.Flags |= FlagIgnored }),
	)
	require.NoError(t, err)
	assert.Equal(t, "Gadget", meta.Table)
	assert.Len(t, meta.Columns, 1)

	again, err := Of[gadget]()
	require.NoError(t, err)
	assert.Same(t, meta, again)

	key, err := again.Key()
	require.NoError(t, err)
	assert.Equal(t, 8, key.Length)

	_, err = Register[gadget](WithTable(" "))
	assert.Error(t, err)
}

func TestTagErrors(t *testing.T) {
	type badOrder struct {
		A string `orm:"order:x"`
	}
	type badOption struct {
		A string `orm:"nonsense"`
	}
	type badConverter struct {
		A string `orm:"converter:yaml"`
	}

	for _, typ := range []reflect.Type{
		reflect.TypeOf(badOrder{}),
		reflect.TypeOf(badOption{}),
		reflect.TypeOf(badConverter{}),
	} {
		_, err := For(typ)
		assert.Error(t, err, typ.Name())
	}

	_, err := For(reflect.TypeOf(0))
	assert.Error(t, err)
}

func TestColumnValues(t *testing.T) {
	meta, err := Of[account]()
	require.NoError(t, err)

	age := 30
	a := &account{Name: "ann", Age: &age, Profile: map[string]any{"theme": "dark"}}
	v := Indirect(a)

	nameCol, _ := meta.Column("Name")
	ageCol, _ := meta.Column("Age")
	emailCol, _ := meta.Column("Email")
	profileCol, _ := meta.Column("Profile")

	assert.True(t, nameCol.Valid(v))
	assert.True(t, ageCol.Valid(v))
	assert.False(t, emailCol.Valid(v))

	got, err := ageCol.DBValue(v)
	require.NoError(t, err)
	assert.Equal(t, 30, got)

	got, err = profileCol.DBValue(v)
	require.NoError(t, err)
	assert.Equal(t, `{"theme":"dark"}`, got)

	a.Age = nil
	got, err = ageCol.DBValue(v)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, "explicitkey|fixed", (FlagExplicitKey | FlagFixed).String())
}

func TestMsgpackConverter(t *testing.T) {
	type payload struct {
		Tags []string
	}
	in := payload{Tags: []string{"a", "b"}}

	raw, err := MsgpackConverter{}.ToDB(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, MsgpackConverter{}.FromDB(raw, reflect.ValueOf(&out).Elem()))
	assert.Equal(t, in, out)

	assert.Error(t, MsgpackConverter{}.FromDB(42, reflect.ValueOf(&out).Elem()))
}
