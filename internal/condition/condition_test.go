package condition

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qcache/internal/field"
)

func productFields() field.Set {
	return field.NewSet(
		field.New("Ref_Key", field.GUID),
		field.New("Description", field.STRING),
		field.New("Price", field.DOUBLE),
		field.New("Qty", field.LONG),
		field.New("Active", field.BOOLEAN),
		field.New("Date", field.DATETIME),
	)
}

func TestCanonical_Empty(t *testing.T) {
	assert.Equal(t, "", Canonical(nil))
	assert.Equal(t, "", Canonical(And{}))
	assert.Equal(t, "", Canonical(AllOf(And{}, nil)))
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(AllOf(And{})))
	assert.False(t, IsEmpty(Equal("Qty", 1)))
	assert.False(t, IsEmpty(Or{}), "empty Or matches nothing")
	assert.True(t, IsEmpty(AnyOf(And{}, Equal("Qty", 1))), "match-all operand absorbs the Or")
	assert.Equal(t, "", Canonical(AnyOf(Equal("Qty", 1), nil)))
}

func TestCanonical_Compare(t *testing.T) {
	testCases := []struct {
		name string
		expr Expr
		want string
	}{
		{"string", Equal("Description", "Pen"), "Description eq 'Pen'"},
		{"quote doubling", Equal("Description", "O'Brien"), "Description eq 'O''Brien'"},
		{"int", Greater("Qty", 10), "Qty gt 10"},
		{"float", LessOrEqual("Price", 9.5), "Price le 9.5"},
		{"bool", NotEqual("Active", false), "Active ne false"},
		{"null", Equal("Description", nil), "Description eq null"},
		{"is null", IsNull{Field: "Description"}, "Description eq null"},
		{
			"guid",
			Equal("Ref_Key", uuid.MustParse("6f9619ff-8b86-d011-b42d-00c04fc964ff")),
			"Ref_Key eq guid'6f9619ff-8b86-d011-b42d-00c04fc964ff'",
		},
		{
			"datetime",
			GreaterOrEqual("Date", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
			"Date ge datetime'2024-01-02T03:04:05.000000000Z'",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Canonical(tc.expr))
		})
	}
}

func TestCanonical_Connectives(t *testing.T) {
	expr := AllOf(
		Equal("Description", "Pen"),
		AnyOf(Greater("Qty", 1), Negate(Equal("Active", true))),
	)
	assert.Equal(t,
		"(Description eq 'Pen') and ((Qty gt 1) or (not (Active eq true)))",
		Canonical(expr))

	// Single child collapses, order is preserved.
	assert.Equal(t, "Qty gt 1", Canonical(AllOf(Greater("Qty", 1))))
	assert.NotEqual(t,
		Canonical(AllOf(Equal("Qty", 1), Equal("Price", 2.5))),
		Canonical(AllOf(Equal("Price", 2.5), Equal("Qty", 1))))

	assert.Equal(t, "false", Canonical(Or{}))
	assert.Equal(t, "false", Canonical(Negate(And{})))
}

func TestCanonical_PointerNodes(t *testing.T) {
	byValue := AllOf(Equal("Qty", 1), Equal("Description", "Pen"))
	byPointer := &And{Exprs: []Expr{&Compare{Field: "Qty", Op: Eq, Value: 1}, Equal("Description", "Pen")}}
	assert.Equal(t, Canonical(byValue), Canonical(byPointer))
	assert.Equal(t, byValue, Normalize(byPointer))

	var nilAnd *And
	assert.Equal(t, "", Canonical(nilAnd))
}

func TestRender_InvalidLiteral(t *testing.T) {
	_, err := Render(Equal("Qty", []int{1}))
	assert.ErrorIs(t, err, ErrInvalidLiteral)

	assert.Panics(t, func() { Canonical(Equal("Qty", struct{}{})) })
}

func TestFields(t *testing.T) {
	expr := AllOf(
		Equal("Qty", 1),
		AnyOf(Equal("Description", "Pen"), IsNull{Field: "Price"}),
		Negate(Equal("Qty", 2)),
	)
	assert.Equal(t, []string{"Description", "Price", "Qty"}, Fields(expr))
	assert.Empty(t, Fields(nil))
}

func TestValidate(t *testing.T) {
	declared := productFields()

	require.NoError(t, Validate(nil, declared))
	require.NoError(t, Validate(AllOf(
		Equal("Description", "Pen"),
		Greater("Price", 1),
		Equal("Ref_Key", "6f9619ff-8b86-d011-b42d-00c04fc964ff"),
		NotEqual("Date", nil),
	), declared))

	testCases := []struct {
		name string
		expr Expr
		want error
	}{
		{"unknown field", Equal("Color", "red"), ErrUnknownField},
		{"unknown field in is null", IsNull{Field: "Color"}, ErrUnknownField},
		{"unknown op", Compare{Field: "Qty", Op: "like", Value: 1}, ErrUnknownOp},
		{"type mismatch", Equal("Qty", "many"), ErrInvalidLiteral},
		{"bad guid", Equal("Ref_Key", "nope"), ErrInvalidLiteral},
		{"null ordering", Less("Qty", nil), ErrInvalidLiteral},
		{"nested", AnyOf(Equal("Qty", 1), Negate(Equal("Color", 1))), ErrUnknownField},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tc.expr, declared), tc.want)
		})
	}
}
