package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	for _, want := range AllTypes {
		got, err := ParseType(string(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := ParseType(" datetime ")
	require.NoError(t, err)
	assert.Equal(t, DATETIME, got)

	_, err = ParseType("DECIMAL")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestType_Column(t *testing.T) {
	assert.Equal(t, "TEXT", GUID.Column())
	assert.Equal(t, "TEXT", DATETIME.Column())
	assert.Equal(t, "INTEGER", BOOLEAN.Column())
	assert.Equal(t, "INTEGER", SHORT.Column())
	assert.Equal(t, "REAL", DOUBLE.Column())
	assert.Equal(t, "BLOB", BINARY.Column())
}

func TestField_Validate(t *testing.T) {
	assert.NoError(t, New("Ref_Key", GUID).Validate())
	assert.ErrorIs(t, New("", STRING).Validate(), ErrInvalidName)
	assert.ErrorIs(t, New(`bad"name`, STRING).Validate(), ErrInvalidName)
	assert.ErrorIs(t, New("Name", Type("TEXT")).Validate(), ErrUnknownType)
}

func TestField_Label(t *testing.T) {
	f := New("Description", STRING)
	assert.Equal(t, "Description", f.Label())
	assert.Equal(t, "Наименование", f.WithOriginalName("Наименование").Label())
	assert.Equal(t, "", f.OriginalName, "WithOriginalName must not mutate the receiver")
}

func TestSet_OrderAndDeduplication(t *testing.T) {
	s := NewSet(
		New("Name", STRING),
		New("Id", LONG),
		New("Name", DOUBLE), // duplicate name, first wins
	)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"Id", "Name"}, s.Names())

	f, ok := s.Get("Name")
	require.True(t, ok)
	assert.Equal(t, STRING, f.Type)

	assert.True(t, s.Has("Id"))
	assert.False(t, s.Has("Price"))
}

func TestSet_ZeroValue(t *testing.T) {
	var s Set
	assert.True(t, s.IsEmpty())
	assert.False(t, s.Has("Id"))
	assert.Empty(t, s.Names())
}

func TestSet_UnionAndMissing(t *testing.T) {
	declared := NewSet(New("Id", LONG), New("Name", STRING))
	requested := NewSet(New("Id", LONG), New("Price", DOUBLE))

	missing := declared.Missing(requested)
	require.Len(t, missing, 1)
	assert.Equal(t, "Price", missing[0].Name)

	union := declared.Union(requested)
	assert.Equal(t, []string{"Id", "Name", "Price"}, union.Names())
	assert.Empty(t, union.Missing(requested))
}

func TestSet_FieldsIsCopy(t *testing.T) {
	s := NewSet(New("Id", LONG))
	fields := s.Fields()
	fields[0].Name = "changed"
	assert.True(t, s.Has("Id"))
}

func TestSet_Equal(t *testing.T) {
	a := NewSet(New("A", LONG), New("B", LONG))
	b := NewSet(New("B", STRING), New("A", STRING))
	assert.True(t, a.Equal(b), "equality is by name")
	assert.False(t, a.Equal(NewSet(New("A", LONG))))
}
