// Package querysql compiles the logical document-store operations (projection,
// condition-scoped delete, existence probes, schema creation and growth) to
// parameterized SQL for SQLite.
//
// Every SELECT carries an ORDER BY on the row id so that streamed rows come
// back in insertion order. Condition literals are never interpolated: they are
// encoded through the declared field type and bound as ? parameters.
package querysql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/qcache/internal/condition"
	"github.com/roach88/qcache/internal/field"
)

// RowIDColumn is the integer primary key every class table carries.
const RowIDColumn = "qc_rid"

// ErrUnknownColumn reports a condition or projection column the compiler
// has no declared type for.
var ErrUnknownColumn = errors.New("unknown column")

// Select describes a projection over one class.
type Select struct {
	Class string

	// Columns is the projection. Empty selects every column, including
	// the row id.
	Columns []string

	Filter condition.Expr
	Limit  int
}

// SQLCompiler compiles queries against one class whose column types are known.
type SQLCompiler struct {
	// Types holds the declared columns of the class. Filter values are
	// encoded with the type of the column they are compared against.
	Types field.Set
}

// NewSQLCompiler creates a compiler for a class with the given columns.
func NewSQLCompiler(types field.Set) *SQLCompiler {
	return &SQLCompiler{Types: types}
}

// Select compiles a projection.
// Returns (sql, params, error).
func (c *SQLCompiler) Select(q Select) (string, []any, error) {
	if q.Class == "" {
		return "", nil, fmt.Errorf("select: empty class")
	}

	cols, err := c.compileColumns(q.Columns)
	if err != nil {
		return "", nil, fmt.Errorf("select %s: %w", q.Class, err)
	}

	where, params, err := c.compilePredicate(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("select %s: %w", q.Class, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s ORDER BY %s",
		cols, QuoteIdent(q.Class), where, stableOrderKey())
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), params, nil
}

// Delete compiles a condition-scoped delete. An empty filter deletes every row.
func (c *SQLCompiler) Delete(class string, filter condition.Expr) (string, []any, error) {
	where, params, err := c.compilePredicate(filter)
	if err != nil {
		return "", nil, fmt.Errorf("delete %s: %w", class, err)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", QuoteIdent(class), where), params, nil
}

// Exists compiles a probe returning one row iff any row matches filter.
func (c *SQLCompiler) Exists(class string, filter condition.Expr) (string, []any, error) {
	where, params, err := c.compilePredicate(filter)
	if err != nil {
		return "", nil, fmt.Errorf("exists %s: %w", class, err)
	}
	return fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", QuoteIdent(class), where), params, nil
}

// Insert compiles an insert of the named columns in the given order.
func Insert(class string, columns []string) string {
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", QuoteIdent(class))
	}
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = QuoteIdent(col)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(class), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

// CreateTable compiles the DDL for a class table with the given columns.
func CreateTable(class string, columns []field.Field) string {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, QuoteIdent(RowIDColumn)+" INTEGER PRIMARY KEY")
	for _, f := range columns {
		defs = append(defs, columnDef(f))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(class), strings.Join(defs, ", "))
}

// AddColumn compiles the DDL adding one column to a class table.
func AddColumn(class string, f field.Field) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", QuoteIdent(class), columnDef(f))
}

// DropTable compiles the DDL removing a class table.
func DropTable(class string) string {
	return "DROP TABLE IF EXISTS " + QuoteIdent(class)
}

// QuoteIdent quotes an SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnDef(f field.Field) string {
	return QuoteIdent(f.Name) + " " + f.Type.Column()
}

func (c *SQLCompiler) compileColumns(columns []string) (string, error) {
	if len(columns) == 0 {
		return "*", nil
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		if col != RowIDColumn && !c.Types.Has(col) {
			return "", fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		parts[i] = QuoteIdent(col)
	}
	return strings.Join(parts, ", "), nil
}

// stableOrderKey returns the ORDER BY clause body.
// Every SELECT must use it so result order is insertion order.
func stableOrderKey() string {
	return QuoteIdent(RowIDColumn) + " ASC"
}

// compilePredicate compiles a condition to a WHERE clause fragment.
// Returns (sql, params, error). The empty condition compiles to "1 = 1".
func (c *SQLCompiler) compilePredicate(expr condition.Expr) (string, []any, error) {
	switch e := expr.(type) {
	case nil:
		return "1 = 1", nil, nil
	case condition.Compare:
		return c.compileCompare(e)
	case *condition.Compare:
		return c.compileCompare(*e)
	case condition.IsNull:
		return c.compileIsNull(e)
	case *condition.IsNull:
		return c.compileIsNull(*e)
	case condition.And:
		return c.compileJoined(e.Exprs, " AND ", "1 = 1")
	case *condition.And:
		return c.compileJoined(e.Exprs, " AND ", "1 = 1")
	case condition.Or:
		return c.compileJoined(e.Exprs, " OR ", "1 = 0")
	case *condition.Or:
		return c.compileJoined(e.Exprs, " OR ", "1 = 0")
	case condition.Not:
		return c.compileNot(e)
	case *condition.Not:
		return c.compileNot(*e)
	default:
		return "", nil, fmt.Errorf("%w: %T", condition.ErrUnsupportedExpr, expr)
	}
}

var sqlOps = map[condition.Op]string{
	condition.Eq: "=",
	condition.Ne: "IS NOT",
	condition.Lt: "<",
	condition.Le: "<=",
	condition.Gt: ">",
	condition.Ge: ">=",
}

// compileCompare compiles a comparison to "column op ?".
// ne uses IS NOT so rows where the column is NULL satisfy it.
func (c *SQLCompiler) compileCompare(cmp condition.Compare) (string, []any, error) {
	f, ok := c.Types.Get(cmp.Field)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownColumn, cmp.Field)
	}
	op, ok := sqlOps[cmp.Op]
	if !ok {
		return "", nil, fmt.Errorf("field %q: %w: %q", cmp.Field, condition.ErrUnknownOp, cmp.Op)
	}

	col := QuoteIdent(f.Name)
	if cmp.Value == nil {
		switch cmp.Op {
		case condition.Eq:
			return col + " IS NULL", nil, nil
		case condition.Ne:
			return col + " IS NOT NULL", nil, nil
		default:
			return "", nil, fmt.Errorf("field %q: %w: null with %s", cmp.Field, condition.ErrInvalidLiteral, cmp.Op)
		}
	}

	param, err := f.Type.Encode(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", cmp.Field, err)
	}
	return fmt.Sprintf("%s %s ?", col, op), []any{param}, nil
}

func (c *SQLCompiler) compileIsNull(n condition.IsNull) (string, []any, error) {
	if !c.Types.Has(n.Field) {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownColumn, n.Field)
	}
	return QuoteIdent(n.Field) + " IS NULL", nil, nil
}

// compileJoined compiles a conjunction or disjunction. Each operand is
// parenthesized; no operands compiles to empty.
func (c *SQLCompiler) compileJoined(exprs []condition.Expr, sep, empty string) (string, []any, error) {
	if len(exprs) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(exprs))
	var params []any
	for _, child := range exprs {
		sql, childParams, err := c.compilePredicate(child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, childParams...)
	}
	return strings.Join(parts, sep), params, nil
}

func (c *SQLCompiler) compileNot(n condition.Not) (string, []any, error) {
	sql, params, err := c.compilePredicate(n.Expr)
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", params, nil
}
