package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"voicehub/internal/infra"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// valuesRow scans vals positionally into the supported destination types.
func valuesRow(vals ...any) simpleRow {
	return simpleRow{scan: func(dest ...any) error { return assign(dest, vals) }}
}

func errRow(err error) simpleRow {
	return simpleRow{scan: func(...any) error { return err }}
}

func assign(dest []any, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(vals))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = vals[i].(string)
		case *int64:
			*p = vals[i].(int64)
		case *bool:
			*p = vals[i].(bool)
		case *time.Time:
			*p = vals[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type fakeRows struct {
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(dest, r.data[r.pos-1])
}

type call struct {
	query string
	args  []any
}

// scriptedDB answers each statement through a handler keyed by the query
// constant. Transactions share the parent's handlers and call log.
type scriptedDB struct {
	rows    map[string]func(args []any) pgx.Row
	execs   map[string]func(args []any) (pgconn.CommandTag, error)
	queries map[string]func(args []any) (pgx.Rows, error)

	calls     []call
	beginErr  error
	commits   int
	rollbacks int
	commitErr error
}

func newScriptedDB() *scriptedDB {
	return &scriptedDB{
		rows:    map[string]func([]any) pgx.Row{},
		execs:   map[string]func([]any) (pgconn.CommandTag, error){},
		queries: map[string]func([]any) (pgx.Rows, error){},
	}
}

func (d *scriptedDB) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	d.calls = append(d.calls, call{query, args})
	if h, ok := d.execs[query]; ok {
		return h(args)
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected exec: %.60q", query)
}

func (d *scriptedDB) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	d.calls = append(d.calls, call{query, args})
	if h, ok := d.rows[query]; ok {
		return h(args)
	}
	return errRow(fmt.Errorf("unexpected query row: %.60q", query))
}

func (d *scriptedDB) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	d.calls = append(d.calls, call{query, args})
	if h, ok := d.queries[query]; ok {
		return h(args)
	}
	return nil, fmt.Errorf("unexpected query: %.60q", query)
}

func (d *scriptedDB) BeginTx(context.Context, pgx.TxOptions) (infra.SQLTx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return &scriptedTx{d}, nil
}

func (d *scriptedDB) ran(query string) bool {
	for _, c := range d.calls {
		if c.query == query {
			return true
		}
	}
	return false
}

type scriptedTx struct {
	*scriptedDB
}

func (t *scriptedTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.commits++
	return nil
}

func (t *scriptedTx) Rollback(context.Context) error {
	t.rollbacks++
	return nil
}

var _ infra.Database = (*scriptedDB)(nil)
