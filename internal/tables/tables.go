// Package tables is a small table-addressed client over database/sql. It
// speaks the same verbs the dashboard always used against the hosted
// backend (select, insert, upsert, update, delete) and hides the SQL dialect
// differences between SQLite and Postgres.
package tables

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// ErrTableMissing is returned when the addressed table does not exist.
var ErrTableMissing = errors.New("table does not exist")

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Row is one record keyed by column name.
type Row map[string]any

// Dialect selects SQL spelling differences.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ ./]*$`)

// Client addresses tables by name.
type Client struct {
	db      *sqlx.DB
	dialect Dialect
}

// New wraps an open database. driverName is the name it was opened with
// ("sqlite" or "pgx").
func New(db *sql.DB, driverName string) *Client {
	d := SQLite
	if driverName == "pgx" || driverName == "postgres" {
		d = Postgres
	}
	return &Client{db: sqlx.NewDb(db, driverName), dialect: d}
}

// DB returns the underlying handle.
func (c *Client) DB() *sql.DB { return c.db.DB }

// Dialect reports which SQL dialect the client emits.
func (c *Client) Dialect() Dialect { return c.dialect }

// Filter is a single WHERE predicate.
type Filter struct {
	Column string
	Op     string
	Value  any
}

func Eq(col string, v any) Filter { return Filter{Column: col, Op: "=", Value: v} }
func Neq(col string, v any) Filter { return Filter{Column: col, Op: "<>", Value: v} }
func IsNull(col string) Filter { return Filter{Column: col, Op: "null"} }
func NotNull(col string) Filter { return Filter{Column: col, Op: "notnull"} }
func Lt(col string, v any) Filter { return Filter{Column: col, Op: "<", Value: v} }

// ILike matches rows whose column contains substr, ignoring case. LIKE
// wildcards in substr match literally.
func ILike(col, substr string) Filter {
	return Filter{Column: col, Op: "ilike", Value: "%" + EscapeLike(substr) + "%"}
}

// HasPrefix matches rows whose column starts with prefix, ignoring case.
func HasPrefix(col, prefix string) Filter {
	return Filter{Column: col, Op: "ilike", Value: EscapeLike(prefix) + "%"}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// EscapeLike backslash-escapes the LIKE metacharacters in s.
func EscapeLike(s string) string { return likeEscaper.Replace(s) }

// In matches any of the given values. An empty list matches nothing.
func In(col string, vals ...any) Filter { return Filter{Column: col, Op: "in", Value: vals} }

// Or matches rows satisfying any of filters.
func Or(filters ...Filter) Filter { return Filter{Op: "or", Value: filters} }

type anyOf struct {
	cols []string
	term string
}

// AnyOf ORs several ILike-style predicates together; used for free-text search.
func AnyOf(cols []string, substr string) Filter {
	return Filter{Op: "anyof", Value: anyOf{cols: cols, term: "%" + EscapeLike(substr) + "%"}}
}

// Query narrows a Select.
type Query struct {
	Columns []string
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Quote validates and quotes an identifier.
func Quote(ident string) (string, error) {
	if !identRe.MatchString(ident) {
		return "", fmt.Errorf("invalid identifier %q", ident)
	}
	return `"` + ident + `"`, nil
}

func (c *Client) where(filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	var parts []string
	var args []any
	for _, f := range filters {
		p, a, err := c.clause(f)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, p)
		args = append(args, a...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func (c *Client) clause(f Filter) (string, []any, error) {
	like := "LIKE"
	if c.dialect == Postgres {
		like = "ILIKE"
	}
	switch f.Op {
	case "anyof":
		v := f.Value.(anyOf)
		var ors []string
		var args []any
		for _, col := range v.cols {
			q, err := Quote(col)
			if err != nil {
				return "", nil, err
			}
			ors = append(ors, fmt.Sprintf(`COALESCE(CAST(%s AS TEXT),'') %s ? ESCAPE '\'`, q, like))
			args = append(args, v.term)
		}
		return "(" + strings.Join(ors, " OR ") + ")", args, nil
	case "or":
		var ors []string
		var args []any
		for _, sub := range f.Value.([]Filter) {
			p, a, err := c.clause(sub)
			if err != nil {
				return "", nil, err
			}
			ors = append(ors, p)
			args = append(args, a...)
		}
		if len(ors) == 0 {
			return "1=0", nil, nil
		}
		return "(" + strings.Join(ors, " OR ") + ")", args, nil
	}

	col, err := Quote(f.Column)
	if err != nil {
		return "", nil, err
	}
	switch f.Op {
	case "null":
		return col + " IS NULL", nil, nil
	case "notnull":
		return col + " IS NOT NULL", nil, nil
	case "ilike":
		return fmt.Sprintf(`%s %s ? ESCAPE '\'`, col, like), []any{f.Value}, nil
	case "in":
		vals := f.Value.([]any)
		if len(vals) == 0 {
			return "1=0", nil, nil
		}
		return col + " IN (?" + strings.Repeat(",?", len(vals)-1) + ")", vals, nil
	case "=", "<>", "<", ">", "<=", ">=":
		return fmt.Sprintf("%s %s ?", col, f.Op), []any{f.Value}, nil
	}
	return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
}

// Select returns matching rows. Byte slices are converted to strings.
func (c *Client) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	t, err := Quote(table)
	if err != nil {
		return nil, err
	}
	cols := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, col := range q.Columns {
			if quoted[i], err = Quote(col); err != nil {
				return nil, err
			}
		}
		cols = strings.Join(quoted, ",")
	}
	where, args, err := c.where(q.Filters)
	if err != nil {
		return nil, err
	}
	stmt := "SELECT " + cols + " FROM " + t + where
	if q.OrderBy != "" {
		o, err := Quote(q.OrderBy)
		if err != nil {
			return nil, err
		}
		stmt += " ORDER BY " + o
		if q.Desc {
			stmt += " DESC"
		}
	}
	if q.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := c.db.QueryxContext(ctx, c.db.Rebind(stmt), args...)
	if err != nil {
		return nil, c.wrap(table, "select", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, c.wrap(table, "scan", err)
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, Row(m))
	}
	if err := rows.Err(); err != nil {
		return nil, c.wrap(table, "select", err)
	}
	return out, nil
}

// Count returns the number of matching rows.
func (c *Client) Count(ctx context.Context, table string, filters ...Filter) (int, error) {
	t, err := Quote(table)
	if err != nil {
		return 0, err
	}
	where, args, err := c.where(filters)
	if err != nil {
		return 0, err
	}
	var n int
	if err := c.db.QueryRowxContext(ctx, c.db.Rebind("SELECT COUNT(*) FROM "+t+where), args...).Scan(&n); err != nil {
		return 0, c.wrap(table, "count", err)
	}
	return n, nil
}

func columnsOf(rows []Row) []string {
	set := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			set[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for k := range set {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func (c *Client) valuesClause(table string, rows []Row) (string, []string, []any, error) {
	t, err := Quote(table)
	if err != nil {
		return "", nil, nil, err
	}
	cols := columnsOf(rows)
	quoted := make([]string, len(cols))
	for i, col := range cols {
		if quoted[i], err = Quote(col); err != nil {
			return "", nil, nil, err
		}
	}
	tuple := "(?" + strings.Repeat(",?", len(cols)-1) + ")"
	tuples := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(cols))
	for i, r := range rows {
		tuples[i] = tuple
		for _, col := range cols {
			args = append(args, r[col])
		}
	}
	stmt := "INSERT INTO " + t + " (" + strings.Join(quoted, ",") + ") VALUES " + strings.Join(tuples, ",")
	return stmt, cols, args, nil
}

// Insert adds rows in a single statement.
func (c *Client) Insert(ctx context.Context, table string, rows ...Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, _, args, err := c.valuesClause(table, rows)
	if err != nil {
		return 0, err
	}
	res, err := c.db.ExecContext(ctx, c.db.Rebind(stmt), args...)
	if err != nil {
		return 0, c.wrap(table, "insert", err)
	}
	return res.RowsAffected()
}

// Upsert inserts rows, updating every supplied column of rows whose conflict
// column already exists. All rows go out in one statement, so conflict keys
// must be unique within the call.
func (c *Client) Upsert(ctx context.Context, table, conflict string, rows ...Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	key, err := Quote(conflict)
	if err != nil {
		return 0, err
	}
	stmt, cols, args, err := c.valuesClause(table, rows)
	if err != nil {
		return 0, err
	}
	var sets []string
	for _, col := range cols {
		if col == conflict {
			continue
		}
		q, _ := Quote(col)
		sets = append(sets, q+"=excluded."+q)
	}
	if len(sets) == 0 {
		stmt += " ON CONFLICT (" + key + ") DO NOTHING"
	} else {
		stmt += " ON CONFLICT (" + key + ") DO UPDATE SET " + strings.Join(sets, ",")
	}
	res, err := c.db.ExecContext(ctx, c.db.Rebind(stmt), args...)
	if err != nil {
		return 0, c.wrap(table, "upsert", err)
	}
	return res.RowsAffected()
}

// Update sets columns on every row matching filters. At least one filter is
// required.
func (c *Client) Update(ctx context.Context, table string, set Row, filters ...Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("update %s: refusing to update without a filter", table)
	}
	if len(set) == 0 {
		return 0, nil
	}
	t, err := Quote(table)
	if err != nil {
		return 0, err
	}
	cols := columnsOf([]Row{set})
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		q, err := Quote(col)
		if err != nil {
			return 0, err
		}
		sets[i] = q + "=?"
		args = append(args, set[col])
	}
	where, wargs, err := c.where(filters)
	if err != nil {
		return 0, err
	}
	args = append(args, wargs...)
	res, err := c.db.ExecContext(ctx, c.db.Rebind("UPDATE "+t+" SET "+strings.Join(sets, ",")+where), args...)
	if err != nil {
		return 0, c.wrap(table, "update", err)
	}
	return res.RowsAffected()
}

// Delete removes matching rows. At least one filter is required; clearing a
// table is spelled Delete(ctx, t, Neq(key, "")).
func (c *Client) Delete(ctx context.Context, table string, filters ...Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("delete %s: refusing to delete without a filter", table)
	}
	t, err := Quote(table)
	if err != nil {
		return 0, err
	}
	where, args, err := c.where(filters)
	if err != nil {
		return 0, err
	}
	res, err := c.db.ExecContext(ctx, c.db.Rebind("DELETE FROM "+t+where), args...)
	if err != nil {
		return 0, c.wrap(table, "delete", err)
	}
	return res.RowsAffected()
}

// Exists reports whether the table is present.
func (c *Client) Exists(ctx context.Context, table string) (bool, error) {
	var n int
	var err error
	if c.dialect == Postgres {
		err = c.db.QueryRowxContext(ctx, "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1", table).Scan(&n)
	} else {
		err = c.db.QueryRowxContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", table, err)
	}
	return n > 0, nil
}

// Exec runs a raw statement, used for DDL.
func (c *Client) Exec(ctx context.Context, stmt string, args ...any) error {
	_, err := c.db.ExecContext(ctx, c.db.Rebind(stmt), args...)
	return err
}

func (c *Client) wrap(table, verb string, err error) error {
	if isMissingTable(err) {
		return fmt.Errorf("%s %s: %w: %v", verb, table, ErrTableMissing, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("%s %s: %w", verb, table, err)
}

func isMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}
	return strings.Contains(err.Error(), "no such table")
}
