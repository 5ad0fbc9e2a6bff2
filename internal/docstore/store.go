package docstore

import (
	"context"

	"github.com/roach88/qcache/internal/condition"
	"github.com/roach88/qcache/internal/field"
)

// Store is the document-store collaborator consumed by the result cache.
type Store interface {
	// CreateClass registers a class under superclass ("" for a root class)
	// and creates its table with every inherited property.
	CreateClass(ctx context.Context, name, superclass string, abstract bool) error

	// ClassExists reports whether a class is registered.
	ClassExists(ctx context.Context, name string) (bool, error)

	// CreateProperty declares a property on class and on every existing
	// subclass. Declaring an identical property again is a no-op and
	// reports created=false.
	CreateProperty(ctx context.Context, class string, p Property) (created bool, err error)

	// PropertiesOf returns the own and inherited properties of class,
	// sorted by name.
	PropertiesOf(ctx context.Context, class string) ([]Property, error)

	// Query streams the rows of q.Class matching q.Filter in insertion
	// order. The caller must Close the returned rows.
	Query(ctx context.Context, q Query) (*Rows, error)

	// Exists reports whether any row of class matches filter.
	Exists(ctx context.Context, class string, filter condition.Expr) (bool, error)

	// DeleteWhere removes the rows of class matching filter.
	DeleteWhere(ctx context.Context, class string, filter condition.Expr) (int64, error)

	// Begin starts a transaction. The SQLite store has one connection and
	// the open Tx holds it: until Commit or Rollback, every other Store
	// call blocks, so a goroutine holding a Tx must only use the Tx.
	Begin(ctx context.Context) (Tx, error)

	// Drop removes every class and its data.
	Drop(ctx context.Context) error

	// Close releases the store.
	Close() error
}

// Tx is a store transaction. Rollback after Commit is a no-op that returns
// an error, so callers may defer it unconditionally. While a Tx is open,
// calls on its Store wait for it to end; see Store.Begin.
type Tx interface {
	// Insert adds one row to class. Every key must be a declared property,
	// every mandatory property must be present and non-nil, and values
	// are encoded by the declared property type.
	Insert(ctx context.Context, class string, row map[string]any) error

	Exists(ctx context.Context, class string, filter condition.Expr) (bool, error)
	DeleteWhere(ctx context.Context, class string, filter condition.Expr) (int64, error)
	Commit() error
	Rollback() error
}

// Class is a registered class.
type Class struct {
	Name       string
	Superclass string
	Abstract   bool
}

// Property is a typed column declaration on a class.
type Property struct {
	Field     field.Field
	Mandatory bool
	Immutable bool

	// Owner is the class that declared the property. Set by PropertiesOf.
	Owner string
}

// Name returns the property name.
func (p Property) Name() string { return p.Field.Name }

// Query selects rows of one class.
type Query struct {
	Class string

	// Fields is the projection; empty selects every property.
	Fields []string

	Filter condition.Expr
}

// Fields returns the field descriptors of props as a set.
func Fields(props []Property) field.Set {
	fields := make([]field.Field, len(props))
	for i, p := range props {
		fields[i] = p.Field
	}
	return field.NewSet(fields...)
}
