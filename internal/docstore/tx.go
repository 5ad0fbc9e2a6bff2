package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/qcache/internal/condition"
	"github.com/roach88/qcache/internal/querysql"
)

// sqliteTx implements Tx. Property declarations are loaded once per class
// per transaction.
type sqliteTx struct {
	tx    *sql.Tx
	props map[string]map[string]Property
}

func (t *sqliteTx) propertiesOf(ctx context.Context, class string) (map[string]Property, error) {
	if props, ok := t.props[class]; ok {
		return props, nil
	}
	list, err := properties(ctx, t.tx, class)
	if err != nil {
		return nil, err
	}
	props := make(map[string]Property, len(list))
	for _, p := range list {
		props[p.Field.Name] = p
	}
	t.props[class] = props
	return props, nil
}

// Insert implements Tx.
func (t *sqliteTx) Insert(ctx context.Context, class string, row map[string]any) error {
	props, err := t.propertiesOf(ctx, class)
	if err != nil {
		return fmt.Errorf("insert %s: %w", class, err)
	}

	columns := make([]string, 0, len(row))
	for name := range row {
		if _, ok := props[name]; !ok {
			return fmt.Errorf("insert %s: %w: %q", class, ErrUnknownProperty, name)
		}
		columns = append(columns, name)
	}
	for name, p := range props {
		if p.Mandatory && row[name] == nil {
			return fmt.Errorf("insert %s: %w: %q", class, ErrMandatoryMissing, name)
		}
	}
	slices.Sort(columns)

	args := make([]any, len(columns))
	for i, name := range columns {
		v, err := props[name].Field.Type.Encode(row[name])
		if err != nil {
			return fmt.Errorf("insert %s: property %q: %w", class, name, err)
		}
		args[i] = v
	}

	if _, err := t.tx.ExecContext(ctx, querysql.Insert(class, columns), args...); err != nil {
		return connErr("insert "+class, err)
	}
	return nil
}

// Exists implements Tx.
func (t *sqliteTx) Exists(ctx context.Context, class string, filter condition.Expr) (bool, error) {
	return exists(ctx, t.tx, class, filter)
}

// DeleteWhere implements Tx.
func (t *sqliteTx) DeleteWhere(ctx context.Context, class string, filter condition.Expr) (int64, error) {
	return deleteWhere(ctx, t.tx, class, filter)
}

// Commit implements Tx.
func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return err
		}
		return connErr("commit", err)
	}
	return nil
}

// Rollback implements Tx. Returns sql.ErrTxDone after Commit.
func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return err
		}
		return connErr("rollback", err)
	}
	return nil
}
