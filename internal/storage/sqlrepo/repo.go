// Package sqlrepo is the remote store over a direct SQL connection (MySQL or Postgres).
package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"alquiler_floripa/internal/adapters/observability"
	"alquiler_floripa/internal/domain"
)

// Table is the domain.RemoteTable for one relation.
type Table[T domain.Record] struct {
	db   *sql.DB
	d    Dialect
	name string
	cols []column
	now  func() time.Time
}

func NewTable[T domain.Record](db *sql.DB, d Dialect, coll domain.Collection) (*Table[T], error) {
	cols, ok := tables[coll]
	if !ok {
		return nil, fmt.Errorf("sqlrepo: no table definition for %q", coll)
	}
	return &Table[T]{db: db, d: d, name: string(coll), cols: cols, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (t *Table[T]) observe(op string, start time.Time, err error) {
	observability.ObserveRemote(t.d.String(), t.name+"."+op, observability.LabelErr(err), time.Since(start))
}

func (t *Table[T]) column(name string) (column, bool) {
	for _, c := range t.cols {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

func (t *Table[T]) selectList() string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = t.d.quote(c.name)
	}
	return strings.Join(names, ", ")
}

func (t *Table[T]) List(ctx context.Context, q domain.Query) (out []T, err error) {
	defer func(start time.Time) { t.observe("list", start, err) }(time.Now())

	var where []string
	var args []any
	ph := func(v any) string {
		args = append(args, v)
		return t.d.placeholder(len(args))
	}
	for _, f := range q.Filters {
		c, ok := t.column(f.Column)
		if !ok {
			return nil, fmt.Errorf("sqlrepo: unknown column %q", f.Column)
		}
		col := t.d.quote(c.name)
		switch f.Op {
		case domain.OpEq:
			v, err := c.arg(f.Value)
			if err != nil {
				return nil, err
			}
			where = append(where, col+" = "+ph(v))
		case domain.OpGte:
			where = append(where, col+" >= "+ph(f.Value))
		case domain.OpLte:
			where = append(where, col+" <= "+ph(f.Value))
		case domain.OpContains:
			where = append(where, t.d.contains(col, ph("%"+fmt.Sprint(f.Value)+"%")))
		case domain.OpContainsAny:
			ors := make([]string, 0, len(f.Values))
			for _, s := range f.Values {
				ors = append(ors, t.d.contains(col, ph("%"+s+"%")))
			}
			if len(ors) > 0 {
				where = append(where, "("+strings.Join(ors, " OR ")+")")
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", t.selectList(), t.d.quote(t.name))
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if q.OrderBy != "" {
		if _, ok := t.column(q.OrderBy); !ok {
			return nil, fmt.Errorf("sqlrepo: unknown order column %q", q.OrderBy)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s, %s ASC", t.d.quote(q.OrderBy), dir, t.d.quote("created_at"))
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}

	rows, err := t.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, classify(t.name+".list", err)
	}
	defer rows.Close()

	out = []T{}
	for rows.Next() {
		rec, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(t.name+".list", err)
	}
	return out, nil
}

func (t *Table[T]) Get(ctx context.Context, id string) (rec T, err error) {
	defer func(start time.Time) { t.observe("get", start, err) }(time.Now())
	qs := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", t.selectList(), t.d.quote(t.name), t.d.quote("id"), t.d.placeholder(1))
	rows, err := t.db.QueryContext(ctx, qs, id)
	if err != nil {
		return rec, classify(t.name+".get", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return rec, classify(t.name+".get", err)
		}
		return rec, domain.ErrNotFound
	}
	return t.scan(rows)
}

func (t *Table[T]) Insert(ctx context.Context, f domain.Fields) (rec T, err error) {
	defer func(start time.Time) { t.observe("insert", start, err) }(time.Now())

	id := uuid.NewString()
	now := t.now()
	names := []string{t.d.quote("id"), t.d.quote("created_at"), t.d.quote("updated_at")}
	args := []any{id, now, now}
	for _, c := range t.cols {
		v, ok := f[c.name]
		if !ok || c.name == "id" || c.kind == kTime {
			continue
		}
		a, err := c.arg(v)
		if err != nil {
			return rec, err
		}
		names = append(names, t.d.quote(c.name))
		args = append(args, a)
	}
	phs := make([]string, len(args))
	for i := range args {
		phs[i] = t.d.placeholder(i + 1)
	}
	qs := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.d.quote(t.name), strings.Join(names, ", "), strings.Join(phs, ", "))
	if _, err := t.db.ExecContext(ctx, qs, args...); err != nil {
		return rec, classify(t.name+".insert", err)
	}
	return t.Get(ctx, id)
}

func (t *Table[T]) Update(ctx context.Context, id string, f domain.Fields) (rec T, err error) {
	defer func(start time.Time) { t.observe("update", start, err) }(time.Now())

	sets := []string{t.d.quote("updated_at") + " = " + t.d.placeholder(1)}
	args := []any{t.now()}
	for _, c := range t.cols {
		v, ok := f[c.name]
		if !ok || c.name == "id" || c.kind == kTime {
			continue
		}
		a, err := c.arg(v)
		if err != nil {
			return rec, err
		}
		args = append(args, a)
		sets = append(sets, t.d.quote(c.name)+" = "+t.d.placeholder(len(args)))
	}
	args = append(args, id)
	qs := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s", t.d.quote(t.name), strings.Join(sets, ", "), t.d.quote("id"), t.d.placeholder(len(args)))
	if _, err := t.db.ExecContext(ctx, qs, args...); err != nil {
		return rec, classify(t.name+".update", err)
	}
	// affected-row counts are unreliable on MySQL when values do not change
	return t.Get(ctx, id)
}

func (t *Table[T]) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { t.observe("delete", start, err) }(time.Now())
	qs := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", t.d.quote(t.name), t.d.quote("id"), t.d.placeholder(1))
	res, err := t.db.ExecContext(ctx, qs, id)
	if err != nil {
		return classify(t.name+".delete", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *Table[T]) scan(rows *sql.Rows) (T, error) {
	var zero T
	dst := make([]any, len(t.cols))
	for i, c := range t.cols {
		switch c.kind {
		case kInt:
			dst[i] = new(sql.NullInt64)
		case kFloat:
			dst[i] = new(sql.NullFloat64)
		case kBool:
			dst[i] = new(sql.NullBool)
		case kTime:
			dst[i] = new(sql.NullTime)
		default:
			dst[i] = new(sql.NullString)
		}
	}
	if err := rows.Scan(dst...); err != nil {
		return zero, classify(t.name+".scan", err)
	}
	f := make(domain.Fields, len(t.cols))
	for i, c := range t.cols {
		switch v := dst[i].(type) {
		case *sql.NullInt64:
			if v.Valid {
				f[c.name] = v.Int64
			} else {
				f[c.name] = nil
			}
		case *sql.NullFloat64:
			if v.Valid {
				f[c.name] = v.Float64
			} else {
				f[c.name] = nil
			}
		case *sql.NullBool:
			f[c.name] = v.Valid && v.Bool
		case *sql.NullTime:
			if v.Valid {
				f[c.name] = v.Time.UTC()
			}
		case *sql.NullString:
			switch {
			case c.kind == kList:
				list := []string{}
				if v.Valid && v.String != "" {
					if err := json.Unmarshal([]byte(v.String), &list); err != nil {
						return zero, fmt.Errorf("sqlrepo: %s.%s: %w", t.name, c.name, err)
					}
				}
				f[c.name] = list
			case v.Valid:
				f[c.name] = v.String
			default:
				f[c.name] = nil
			}
		}
	}
	return domain.FromFields[T](f)
}

// arg converts a normalized field value to a driver argument for c.
func (c column) arg(v any) (any, error) {
	if v == nil {
		if c.kind == kList {
			return "[]", nil
		}
		return nil, nil
	}
	switch c.kind {
	case kList:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("sqlrepo: %s: %w", c.name, err)
		}
		return string(b), nil
	case kInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		}
	case kFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case kBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case kText:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case kTime:
		if tm, ok := v.(time.Time); ok {
			return tm, nil
		}
	}
	return nil, fmt.Errorf("sqlrepo: %s: unexpected value %T", c.name, v)
}

// Probe reads at most one banner row.
func Probe(ctx context.Context, db *sql.DB) error {
	var id string
	err := db.QueryRowContext(ctx, probeSQL).Scan(&id)
	if err == nil || err == sql.ErrNoRows {
		return nil
	}
	return classify("probe", err)
}

// Pinger adapts Probe to domain.Pinger.
type Pinger struct{ DB *sql.DB }

func (p Pinger) Probe(ctx context.Context) error { return Probe(ctx, p.DB) }
