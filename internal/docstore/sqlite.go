package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/roach88/qcache/internal/condition"
	"github.com/roach88/qcache/internal/field"
	"github.com/roach88/qcache/internal/querysql"
)

// SQLite implements Store on an in-process SQLite database.
type SQLite struct {
	db     *sql.DB
	driver string
	mode   Mode
	path   string
	closed atomic.Bool
}

var _ Store = (*SQLite)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Driver returns the database/sql driver name in use.
func (s *SQLite) Driver() string { return s.driver }

// Mode returns the store mode.
func (s *SQLite) Mode() Mode { return s.mode }

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) check() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// CreateClass implements Store.
func (s *SQLite) CreateClass(ctx context.Context, name, superclass string, abstract bool) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := validateClassName(name); err != nil {
		return err
	}

	return s.inTx(ctx, "create class "+name, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT name FROM qc_classes WHERE name = ? COLLATE NOCASE`, name).Scan(&existing)
		switch {
		case err == nil:
			return fmt.Errorf("create class %s: %w (as %s)", name, ErrClassExists, existing)
		case !errors.Is(err, sql.ErrNoRows):
			return connErr("create class "+name, err)
		}

		var inherited []Property
		if superclass != "" {
			inherited, err = properties(ctx, tx, superclass)
			if err != nil {
				return fmt.Errorf("create class %s: %w", name, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO qc_classes (name, superclass, abstract, created_seq)
			VALUES (?, ?, ?, (SELECT COALESCE(MAX(created_seq), 0) + 1 FROM qc_classes))
		`, name, superclass, boolInt(abstract)); err != nil {
			return connErr("create class "+name, err)
		}

		columns := make([]field.Field, len(inherited))
		for i, p := range inherited {
			columns[i] = p.Field
		}
		if _, err := tx.ExecContext(ctx, querysql.CreateTable(name, columns)); err != nil {
			return connErr("create class "+name, err)
		}
		return nil
	})
}

// ClassExists implements Store.
func (s *SQLite) ClassExists(ctx context.Context, name string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	_, ok, err := lookupClass(ctx, s.db, name)
	return ok, err
}

// CreateProperty implements Store.
func (s *SQLite) CreateProperty(ctx context.Context, class string, p Property) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	if err := p.Field.Validate(); err != nil {
		return false, fmt.Errorf("create property %s.%s: %w", class, p.Field.Name, err)
	}

	op := "create property " + class + "." + p.Field.Name
	created := false
	err := s.inTx(ctx, op, func(tx *sql.Tx) error {
		existing, err := properties(ctx, tx, class)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if prev, ok := findProperty(existing, p.Field.Name); ok {
			if prev.Field.Name == p.Field.Name && prev.Field.Type == p.Field.Type {
				return nil
			}
			return fmt.Errorf("%s: %w: declared as %s on %s", op, ErrPropertyConflict, prev.Field, prev.Owner)
		}

		descendants, err := subclasses(ctx, tx, class)
		if err != nil {
			return connErr(op, err)
		}
		for _, sub := range descendants {
			own, err := ownProperties(ctx, tx, sub)
			if err != nil {
				return connErr(op, err)
			}
			if prev, ok := findProperty(own, p.Field.Name); ok {
				return fmt.Errorf("%s: %w: declared as %s on subclass %s", op, ErrPropertyConflict, prev.Field, sub)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO qc_properties (class, name, type, original_name, mandatory, immutable, seq)
			VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM qc_properties))
		`, class, p.Field.Name, string(p.Field.Type), p.Field.OriginalName,
			boolInt(p.Mandatory), boolInt(p.Immutable)); err != nil {
			return connErr(op, err)
		}

		for _, target := range append([]string{class}, descendants...) {
			if _, err := tx.ExecContext(ctx, querysql.AddColumn(target, p.Field)); err != nil {
				return connErr(op, err)
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// PropertiesOf implements Store.
func (s *SQLite) PropertiesOf(ctx context.Context, class string) ([]Property, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	props, err := properties(ctx, s.db, class)
	if err != nil {
		return nil, fmt.Errorf("properties of %s: %w", class, err)
	}
	return props, nil
}

// Query implements Store.
func (s *SQLite) Query(ctx context.Context, q Query) (*Rows, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	compiler, err := compilerFor(ctx, s.db, q.Class)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Class, err)
	}
	stmt, params, err := compiler.Select(querysql.Select{
		Class:   q.Class,
		Columns: q.Fields,
		Filter:  q.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, connErr("query "+q.Class, err)
	}
	return newRows(q.Class, rows)
}

// Exists implements Store.
func (s *SQLite) Exists(ctx context.Context, class string, filter condition.Expr) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return exists(ctx, s.db, class, filter)
}

// DeleteWhere implements Store.
func (s *SQLite) DeleteWhere(ctx context.Context, class string, filter condition.Expr) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return deleteWhere(ctx, s.db, class, filter)
}

// Begin implements Store.
func (s *SQLite) Begin(ctx context.Context) (Tx, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, connErr("begin", err)
	}
	return &sqliteTx{tx: tx, props: make(map[string]map[string]Property)}, nil
}

// Drop implements Store.
func (s *SQLite) Drop(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.inTx(ctx, "drop", func(tx *sql.Tx) error {
		names, err := queryStrings(ctx, tx, `SELECT name FROM qc_classes ORDER BY created_seq DESC`)
		if err != nil {
			return connErr("drop", err)
		}
		for _, name := range names {
			if _, err := tx.ExecContext(ctx, querysql.DropTable(name)); err != nil {
				return connErr("drop "+name, err)
			}
		}
		for _, stmt := range []string{`DELETE FROM qc_properties`, `DELETE FROM qc_classes`} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return connErr("drop", err)
			}
		}
		return nil
	})
}

// Close closes the database. A file store's database is removed.
// Close is idempotent.
func (s *SQLite) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.db.Close()
	if s.path != "" {
		removeDatabase(s.path)
	}
	if err != nil {
		return connErr("close", err)
	}
	return nil
}

// inTx runs fn in a transaction, committing iff fn succeeds.
func (s *SQLite) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return connErr(op, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return connErr(op, err)
	}
	return nil
}

func validateClassName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, "\"\x00\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "qc_") || strings.HasPrefix(lower, "sqlite_") {
		return fmt.Errorf("%w: %q uses a reserved prefix", ErrInvalidName, name)
	}
	return nil
}

// lookupClass loads one class row.
func lookupClass(ctx context.Context, q querier, name string) (Class, bool, error) {
	var (
		c        Class
		abstract int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT name, superclass, abstract FROM qc_classes WHERE name = ?`, name).
		Scan(&c.Name, &c.Superclass, &abstract)
	if errors.Is(err, sql.ErrNoRows) {
		return Class{}, false, nil
	}
	if err != nil {
		return Class{}, false, connErr("lookup class "+name, err)
	}
	c.Abstract = abstract != 0
	return c, true, nil
}

// properties returns the own and inherited properties of class, sorted by name.
func properties(ctx context.Context, q querier, class string) ([]Property, error) {
	var all []Property
	for name := class; name != ""; {
		c, ok, err := lookupClass(ctx, q, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
		}
		own, err := ownProperties(ctx, q, name)
		if err != nil {
			return nil, connErr("properties of "+name, err)
		}
		all = append(all, own...)
		name = c.Superclass
	}
	slices.SortFunc(all, func(a, b Property) int { return strings.Compare(a.Field.Name, b.Field.Name) })
	return all, nil
}

func ownProperties(ctx context.Context, q querier, class string) ([]Property, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, type, original_name, mandatory, immutable
		FROM qc_properties
		WHERE class = ?
		ORDER BY name COLLATE BINARY ASC
	`, class)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []Property
	for rows.Next() {
		var (
			name, typ, original  string
			mandatory, immutable int64
		)
		if err := rows.Scan(&name, &typ, &original, &mandatory, &immutable); err != nil {
			return nil, err
		}
		props = append(props, Property{
			Field:     field.Field{Name: name, Type: field.Type(typ), OriginalName: original},
			Mandatory: mandatory != 0,
			Immutable: immutable != 0,
			Owner:     class,
		})
	}
	return props, rows.Err()
}

// subclasses returns every transitive subclass of class.
func subclasses(ctx context.Context, q querier, class string) ([]string, error) {
	return queryStrings(ctx, q, `
		WITH RECURSIVE sub(name) AS (
			SELECT name FROM qc_classes WHERE superclass = ?
			UNION
			SELECT c.name FROM qc_classes c JOIN sub ON c.superclass = sub.name
		)
		SELECT name FROM sub ORDER BY name COLLATE BINARY ASC
	`, class)
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// findProperty finds a property by name. SQLite column names are
// case-insensitive, so a case-only difference is a match too.
func findProperty(props []Property, name string) (Property, bool) {
	for _, p := range props {
		if strings.EqualFold(p.Field.Name, name) {
			return p, true
		}
	}
	return Property{}, false
}

func compilerFor(ctx context.Context, q querier, class string) (*querysql.SQLCompiler, error) {
	props, err := properties(ctx, q, class)
	if err != nil {
		return nil, err
	}
	return querysql.NewSQLCompiler(Fields(props)), nil
}

func exists(ctx context.Context, q querier, class string, filter condition.Expr) (bool, error) {
	compiler, err := compilerFor(ctx, q, class)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", class, err)
	}
	stmt, params, err := compiler.Exists(class, filter)
	if err != nil {
		return false, err
	}

	var one int
	err = q.QueryRowContext(ctx, stmt, params...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, connErr("exists "+class, err)
	}
	return true, nil
}

func deleteWhere(ctx context.Context, q querier, class string, filter condition.Expr) (int64, error) {
	compiler, err := compilerFor(ctx, q, class)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", class, err)
	}
	stmt, params, err := compiler.Delete(class, filter)
	if err != nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx, stmt, params...)
	if err != nil {
		return 0, connErr("delete "+class, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, connErr("delete "+class, err)
	}
	return n, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
