package condition

// Expr represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Expression types:
//   - Compare: field <op> literal
//   - IsNull: field has no value
//   - And: all children must hold
//   - Or: at least one child must hold
//   - Not: the child must not hold
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Op is a relational operator.
type Op string

// Relational operators.
const (
	Eq Op = "eq"
	Ne Op = "ne"
	Lt Op = "lt"
	Le Op = "le"
	Gt Op = "gt"
	Ge Op = "ge"
)

// Valid reports whether op is a known operator.
func (op Op) Valid() bool {
	switch op {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return true
	}
	return false
}

// Compare represents a field-versus-literal comparison.
//
// Semantics:
//
//	<field> <op> <value>
//
// Value must be a scalar: string, any integer or float kind, bool,
// uuid.UUID, time.Time, or nil. A nil value is only meaningful with Eq
// (field is null) and Ne (field is not null).
//
// Ne treats a missing value as different from any literal, so rows whose
// field is null match "field ne 'x'".
//
// Example:
//
//	Compare{Field: "Description", Op: Eq, Value: "Pen"}
//
// Canonical form:
//
//	Description eq 'Pen'
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (Compare) exprNode() {}

// IsNull matches rows where the field holds no value.
//
// Canonical form:
//
//	<field> eq null
type IsNull struct {
	Field string
}

func (IsNull) exprNode() {}

// And represents a conjunction (all children must hold).
//
// An And with no children is the empty condition and matches every row.
// Children keep their order; "a and b" and "b and a" are different
// conditions even though they select the same rows.
type And struct {
	Exprs []Expr
}

func (And) exprNode() {}

// Or represents a disjunction (at least one child must hold).
//
// An Or with no children matches no row.
type Or struct {
	Exprs []Expr
}

func (Or) exprNode() {}

// Not negates its child.
type Not struct {
	Expr Expr
}

func (Not) exprNode() {}

// Constructors.

// Equal returns field eq value.
func Equal(field string, value any) Compare {
	return Compare{Field: field, Op: Eq, Value: value}
}

// NotEqual returns field ne value.
func NotEqual(field string, value any) Compare {
	return Compare{Field: field, Op: Ne, Value: value}
}

// Less returns field lt value.
func Less(field string, value any) Compare {
	return Compare{Field: field, Op: Lt, Value: value}
}

// LessOrEqual returns field le value.
func LessOrEqual(field string, value any) Compare {
	return Compare{Field: field, Op: Le, Value: value}
}

// Greater returns field gt value.
func Greater(field string, value any) Compare {
	return Compare{Field: field, Op: Gt, Value: value}
}

// GreaterOrEqual returns field ge value.
func GreaterOrEqual(field string, value any) Compare {
	return Compare{Field: field, Op: Ge, Value: value}
}

// AllOf returns the conjunction of exprs.
func AllOf(exprs ...Expr) And {
	return And{Exprs: exprs}
}

// AnyOf returns the disjunction of exprs.
func AnyOf(exprs ...Expr) Or {
	return Or{Exprs: exprs}
}

// Negate returns the negation of expr.
func Negate(expr Expr) Not {
	return Not{Expr: expr}
}

// IsEmpty reports whether expr matches every row without filtering:
// nil, or an And whose children are all empty.
func IsEmpty(expr Expr) bool {
	switch e := expr.(type) {
	case nil:
		return true
	case And:
		return allEmpty(e.Exprs)
	case *And:
		return e == nil || allEmpty(e.Exprs)
	case Or:
		return anyEmpty(e.Exprs)
	case *Or:
		return e != nil && anyEmpty(e.Exprs)
	}
	return false
}

func anyEmpty(exprs []Expr) bool {
	for _, child := range exprs {
		if IsEmpty(child) {
			return true
		}
	}
	return false
}

func allEmpty(exprs []Expr) bool {
	for _, child := range exprs {
		if !IsEmpty(child) {
			return false
		}
	}
	return true
}
