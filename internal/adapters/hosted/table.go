package hosted

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"alquiler_floripa/internal/domain"
)

// Table is the domain.RemoteTable for one relation.
type Table[T domain.Record] struct {
	c    *Client
	name string
}

func NewTable[T domain.Record](c *Client, coll domain.Collection) *Table[T] {
	return &Table[T]{c: c, name: string(coll)}
}

func (t *Table[T]) endpoint(v url.Values) string {
	return t.c.base + "/rest/v1/" + t.name + "?" + v.Encode()
}

func (t *Table[T]) List(ctx context.Context, q domain.Query) ([]T, error) {
	v := encodeQuery(q)
	var out []T
	if err := t.c.do(ctx, request{op: t.name + ".list", method: http.MethodGet, url: t.endpoint(v)}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	v := url.Values{"select": {"*"}, "id": {"eq." + id}, "limit": {"1"}}
	var out []T
	if err := t.c.do(ctx, request{op: t.name + ".get", method: http.MethodGet, url: t.endpoint(v)}, &out); err != nil {
		return zero, err
	}
	if len(out) == 0 {
		return zero, domain.ErrNotFound
	}
	return out[0], nil
}

func (t *Table[T]) Insert(ctx context.Context, f domain.Fields) (T, error) {
	var zero T
	var out []T
	req := request{
		op: t.name + ".insert", method: http.MethodPost, url: t.endpoint(url.Values{"select": {"*"}}),
		body: f, headers: map[string]string{"Prefer": "return=representation"},
	}
	if err := t.c.do(ctx, req, &out); err != nil {
		return zero, err
	}
	if len(out) == 0 {
		return zero, fmt.Errorf("%s insert: %w", t.name, errNoRows)
	}
	return out[0], nil
}

func (t *Table[T]) Update(ctx context.Context, id string, f domain.Fields) (T, error) {
	var zero T
	var out []T
	req := request{
		op: t.name + ".update", method: http.MethodPatch, url: t.endpoint(url.Values{"id": {"eq." + id}, "select": {"*"}}),
		body: f, headers: map[string]string{"Prefer": "return=representation"},
	}
	if err := t.c.do(ctx, req, &out); err != nil {
		return zero, err
	}
	if len(out) == 0 {
		return zero, domain.ErrNotFound
	}
	return out[0], nil
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	var out []map[string]any
	req := request{
		op: t.name + ".delete", method: http.MethodDelete, url: t.endpoint(url.Values{"id": {"eq." + id}, "select": {"id"}}),
		headers: map[string]string{"Prefer": "return=representation"},
	}
	if err := t.c.do(ctx, req, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// encodeQuery renders q in PostgREST's horizontal filtering syntax.
func encodeQuery(q domain.Query) url.Values {
	v := url.Values{"select": {"*"}}
	for _, f := range q.Filters {
		switch f.Op {
		case domain.OpContains:
			v.Add(f.Column, "ilike.*"+literal(f.Value)+"*")
		case domain.OpContainsAny:
			parts := make([]string, 0, len(f.Values))
			for _, s := range f.Values {
				parts = append(parts, f.Column+".ilike.*"+s+"*")
			}
			v.Add("or", "("+strings.Join(parts, ",")+")")
		default:
			v.Add(f.Column, string(f.Op)+"."+literal(f.Value))
		}
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		v.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func literal(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return fmt.Sprint(v)
}
