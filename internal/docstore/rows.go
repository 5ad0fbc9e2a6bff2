package docstore

import (
	"database/sql"

	"github.com/roach88/qcache/internal/querysql"
)

// Rows streams the result of a Query. Values are store-native: int64,
// float64, string or []byte depending on column affinity and driver.
// NULL columns are present with a nil value.
//
// Rows holds the store's only connection until it is closed or exhausted.
type Rows struct {
	class string
	rows  *sql.Rows
	cols  []string
	row   map[string]any
	err   error
}

func newRows(class string, rows *sql.Rows) (*Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, connErr("query "+class, err)
	}
	return &Rows{class: class, rows: rows, cols: cols}, nil
}

// Columns returns the projected column names.
func (r *Rows) Columns() []string { return r.cols }

// Next advances to the next row. It returns false at the end of the stream
// or on error; check Err afterwards.
func (r *Rows) Next() bool {
	if r.err != nil {
		return false
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			r.err = connErr("query "+r.class, err)
		}
		r.row = nil
		return false
	}

	vals := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.err = connErr("query "+r.class, err)
		r.row = nil
		return false
	}

	row := make(map[string]any, len(r.cols))
	for i, col := range r.cols {
		if col == querysql.RowIDColumn {
			continue
		}
		row[col] = vals[i]
	}
	r.row = row
	return true
}

// Row returns the current row. The map belongs to the caller.
func (r *Rows) Row() map[string]any { return r.row }

// Err returns the error that stopped iteration, if any.
func (r *Rows) Err() error { return r.err }

// Close releases the rows. Close is idempotent.
func (r *Rows) Close() error {
	if err := r.rows.Close(); err != nil {
		return connErr("close rows "+r.class, err)
	}
	return nil
}
