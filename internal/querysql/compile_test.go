package querysql

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qcache/internal/condition"
	"github.com/roach88/qcache/internal/field"
)

func productColumns() field.Set {
	return field.NewSet(
		field.New("Id", field.LONG),
		field.New("Name", field.STRING),
		field.New("Price", field.DOUBLE),
		field.New("Active", field.BOOLEAN),
		field.New("Ref_Key", field.GUID),
		field.New("Date", field.DATETIME),
		field.New("qc_stamp", field.LONG),
		field.New("qc_discriminator", field.STRING),
	)
}

func TestSelect_Projection(t *testing.T) {
	compiler := NewSQLCompiler(productColumns())

	sql, params, err := compiler.Select(Select{
		Class:   "Product",
		Columns: []string{"Id", "Name", "qc_stamp"},
	})
	require.NoError(t, err)

	assert.Equal(t, `SELECT "Id", "Name", "qc_stamp" FROM "Product" WHERE 1 = 1 ORDER BY "qc_rid" ASC`, sql)
	assert.Empty(t, params)
}

func TestSelect_AllColumns(t *testing.T) {
	compiler := NewSQLCompiler(productColumns())

	sql, _, err := compiler.Select(Select{Class: "Product", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "Product" WHERE 1 = 1 ORDER BY "qc_rid" ASC LIMIT 10`, sql)
}

func TestSelect_OrderByMandatory(t *testing.T) {
	compiler := NewSQLCompiler(productColumns())

	testCases := []struct {
		name   string
		filter condition.Expr
	}{
		{"no filter", nil},
		{"eq", condition.Equal("Name", "Pen")},
		{"and", condition.AllOf(condition.Equal("Name", "Pen"), condition.Greater("Price", 1))},
		{"empty or", condition.AnyOf()},
		{"not", condition.Negate(condition.Equal("Id", 1))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, _, err := compiler.Select(Select{Class: "Product", Columns: []string{"Id"}, Filter: tc.filter})
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(sql, `ORDER BY "qc_rid" ASC`), "missing ORDER BY: %s", sql)
		})
	}
}

func TestSelect_ParameterizedNeverInterpolated(t *testing.T) {
	compiler := NewSQLCompiler(productColumns())

	sql, params, err := compiler.Select(Select{
		Class:   "Product",
		Columns: []string{"Name"},
		Filter:  condition.Equal("Name", "Robert'); DROP TABLE Product;--"),
	})
	require.NoError(t, err)

	assert.NotContains(t, sql, "DROP")
	assert.Contains(t, sql, `WHERE "Name" = ?`)
	assert.Equal(t, []any{"Robert'); DROP TABLE Product;--"}, params)
}

func TestCompilePredicate(t *testing.T) {
	compiler := NewSQLCompiler(productColumns())
	ref := uuid.MustParse("6F9619FF-8B86-D011-B42D-00C04FC964FF")
	date := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)

	testCases := []struct {
		name       string
		expr       condition.Expr
		wantSQL    string
		wantParams []any
	}{
		{"empty", nil, "1 = 1", nil},
		{"empty and", condition.AllOf(), "1 = 1", nil},
		{"empty or", condition.AnyOf(), "1 = 0", nil},
		{"eq string", condition.Equal("Name", "Pen"), `"Name" = ?`, []any{"Pen"}},
		{"ne keeps nulls", condition.NotEqual("Name", "Pen"), `"Name" IS NOT ?`, []any{"Pen"}},
		{"lt", condition.Less("Id", 5), `"Id" < ?`, []any{int64(5)}},
		{"le", condition.LessOrEqual("Id", int32(5)), `"Id" <= ?`, []any{int64(5)}},
		{"gt double from int", condition.Greater("Price", 9), `"Price" > ?`, []any{float64(9)}},
		{"ge", condition.GreaterOrEqual("Price", 9.5), `"Price" >= ?`, []any{9.5}},
		{"bool", condition.Equal("Active", true), `"Active" = ?`, []any{int64(1)}},
		{"guid", condition.Equal("Ref_Key", ref), `"Ref_Key" = ?`, []any{"6f9619ff-8b86-d011-b42d-00c04fc964ff"}},
		{"datetime", condition.Greater("Date", date), `"Date" > ?`, []any{"2024-01-02T03:04:05.000000006Z"}},
		{"eq null", condition.Equal("Name", nil), `"Name" IS NULL`, nil},
		{"ne null", condition.NotEqual("Name", nil), `"Name" IS NOT NULL`, nil},
		{"is null", condition.IsNull{Field: "Price"}, `"Price" IS NULL`, nil},
		{
			"and",
			condition.AllOf(condition.Equal("Name", "Pen"), condition.Greater("Price", 1.5)),
			`("Name" = ?) AND ("Price" > ?)`,
			[]any{"Pen", 1.5},
		},
		{
			"or of and",
			condition.AnyOf(
				condition.AllOf(condition.Equal("Id", 1), condition.Equal("Active", false)),
				condition.Equal("Id", 2),
			),
			`(("Id" = ?) AND ("Active" = ?)) OR ("Id" = ?)`,
			[]any{int64(1), int64(0), int64(2)},
		},
		{"not", condition.Negate(condition.Equal("Id", 1)), `NOT ("Id" = ?)`, []any{int64(1)}},
		{"not empty", condition.Negate(condition.AllOf()), `NOT (1 = 1)`, nil},
		{
			"pointer nodes",
			&condition.And{Exprs: []condition.Expr{&condition.Compare{Field: "Id", Op: condition.Eq, Value: 3}}},
			`("Id" = ?)`,
			[]any{int64(3)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, params, err := compiler.compilePredicate(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.wantSQL, sql)
			assert.Equal(t, tc.wantParams, params)
		})
	}
}

func TestCompilePredicate_Errors(t *testing.T) {
	compiler := NewSQLCompiler(productColumns())

	_, _, err := compiler.compilePredicate(condition.Equal("Color", "red"))
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, _, err = compiler.compilePredicate(condition.IsNull{Field: "Color"})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, _, err = compiler.compilePredicate(condition.Compare{Field: "Id", Op: "like", Value: 1})
	assert.ErrorIs(t, err, condition.ErrUnknownOp)

	_, _, err = compiler.compilePredicate(condition.Less("Id", nil))
	assert.ErrorIs(t, err, condition.ErrInvalidLiteral)

	_, _, err = compiler.compilePredicate(condition.Equal("Id", "one"))
	assert.ErrorIs(t, err, field.ErrTypeMismatch)

	_, _, err = compiler.compilePredicate(condition.AllOf(condition.Equal("Id", 1), condition.Equal("Nope", 1)))
	assert.ErrorIs(t, err, ErrUnknownColumn, "errors in nested operands surface")

	_, _, err = compiler.Select(Select{Class: "Product", Columns: []string{"Nope"}})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, _, err = compiler.Select(Select{})
	assert.Error(t, err)
}

func TestDeleteAndExists(t *testing.T) {
	compiler := NewSQLCompiler(productColumns())
	scope := condition.Equal("qc_discriminator", "abc")

	sql, params, err := compiler.Delete("Product", scope)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "Product" WHERE "qc_discriminator" = ?`, sql)
	assert.Equal(t, []any{"abc"}, params)

	sql, _, err = compiler.Delete("Product", nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "Product" WHERE 1 = 1`, sql)

	sql, params, err = compiler.Exists("Product", scope)
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1 FROM "Product" WHERE "qc_discriminator" = ? LIMIT 1`, sql)
	assert.Equal(t, []any{"abc"}, params)
}

func TestDDL(t *testing.T) {
	assert.Equal(t,
		`CREATE TABLE "Product" ("qc_rid" INTEGER PRIMARY KEY, "Id" INTEGER, "Name" TEXT)`,
		CreateTable("Product", []field.Field{field.New("Id", field.LONG), field.New("Name", field.STRING)}))
	assert.Equal(t, `CREATE TABLE "Catalog" ("qc_rid" INTEGER PRIMARY KEY)`, CreateTable("Catalog", nil))
	assert.Equal(t, `ALTER TABLE "Product" ADD COLUMN "Price" REAL`, AddColumn("Product", field.New("Price", field.DOUBLE)))
	assert.Equal(t, `DROP TABLE IF EXISTS "Product"`, DropTable("Product"))
	assert.Equal(t, `INSERT INTO "Product" ("Id", "Name") VALUES (?, ?)`, Insert("Product", []string{"Id", "Name"}))
	assert.Equal(t, `INSERT INTO "Product" DEFAULT VALUES`, Insert("Product", nil))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"Name"`, QuoteIdent("Name"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
	assert.Equal(t, `"Catalog_Products"`, QuoteIdent("Catalog_Products"))
}

// TestGolden_StoreCycle pins the statements issued by one virtual-table
// store followed by a fetch.
func TestGolden_StoreCycle(t *testing.T) {
	cols := field.NewSet(
		field.New("Period", field.DATETIME),
		field.New("Amount", field.DOUBLE),
		field.New("qc_stamp", field.LONG),
		field.New("qc_discriminator", field.STRING),
	)
	compiler := NewSQLCompiler(cols)
	scope := condition.Equal("qc_discriminator", "d1")

	exists, _, err := compiler.Exists("Balance", scope)
	require.NoError(t, err)
	del, _, err := compiler.Delete("Balance", scope)
	require.NoError(t, err)
	sel, _, err := compiler.Select(Select{
		Class:   "Balance",
		Columns: []string{"Amount", "Period", "qc_stamp"},
		Filter:  scope,
	})
	require.NoError(t, err)

	statements := []string{
		CreateTable("Balance", cols.Fields()),
		exists,
		del,
		Insert("Balance", []string{"Amount", "Period", "qc_discriminator", "qc_stamp"}),
		sel,
		DropTable("Balance"),
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "store_cycle", []byte(strings.Join(statements, "\n")+"\n"))
}
