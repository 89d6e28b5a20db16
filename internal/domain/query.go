package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Op string

const (
	OpEq          Op = "eq"
	OpGte         Op = "gte"
	OpLte         Op = "lte"
	OpContains    Op = "ilike"
	OpContainsAny Op = "ilike_any"
)

type Filter struct {
	Column string
	Op     Op
	Value  any
	Values []string // OpContainsAny only
}

// Query is the subset of remote filtering the site needs: equality, range,
// case-insensitive contains, single-column ordering and a row limit.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

func (q Query) with(f Filter) Query {
	fs := make([]Filter, 0, len(q.Filters)+1)
	fs = append(fs, q.Filters...)
	q.Filters = append(fs, f)
	return q
}

func (q Query) Eq(col string, v any) Query  { return q.with(Filter{Column: col, Op: OpEq, Value: v}) }
func (q Query) Gte(col string, v any) Query { return q.with(Filter{Column: col, Op: OpGte, Value: v}) }
func (q Query) Lte(col string, v any) Query { return q.with(Filter{Column: col, Op: OpLte, Value: v}) }
func (q Query) Contains(col, s string) Query {
	return q.with(Filter{Column: col, Op: OpContains, Value: s})
}
func (q Query) ContainsAny(col string, ss []string) Query {
	return q.with(Filter{Column: col, Op: OpContainsAny, Values: ss})
}

func (q Query) Order(col string, desc bool) Query {
	q.OrderBy, q.Desc = col, desc
	return q
}

// CacheKey is a stable textual form of q, used for view caching.
func (q Query) CacheKey() string {
	parts := make([]string, 0, len(q.Filters)+2)
	for _, f := range q.Filters {
		if f.Op == OpContainsAny {
			parts = append(parts, fmt.Sprintf("%s.%s.%s", f.Column, f.Op, strings.Join(f.Values, "|")))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s.%s.%v", f.Column, f.Op, f.Value))
	}
	sort.Strings(parts)
	parts = append(parts, fmt.Sprintf("order=%s:%t", q.OrderBy, q.Desc), fmt.Sprintf("limit=%d", q.Limit))
	return strings.Join(parts, "&")
}

// Matches evaluates q's filters against a JSON-shaped record.
func (q Query) Matches(rec Fields) bool {
	for _, f := range q.Filters {
		v := rec[f.Column]
		switch f.Op {
		case OpEq:
			if !equalValues(v, f.Value) {
				return false
			}
		case OpGte, OpLte:
			if v == nil {
				return false
			}
			c := compareValues(v, f.Value)
			if (f.Op == OpGte && c < 0) || (f.Op == OpLte && c > 0) {
				return false
			}
		case OpContains:
			s, _ := v.(string)
			if !strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(f.Value))) {
				return false
			}
		case OpContainsAny:
			s, _ := v.(string)
			s = strings.ToLower(s)
			hit := false
			for _, want := range f.Values {
				if strings.Contains(s, strings.ToLower(want)) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		}
	}
	return true
}

// Apply filters, orders and limits records in memory the same way the remote store would.
func Apply[T Record](items []T, q Query) []T {
	type row struct {
		item T
		f    Fields
	}
	rows := make([]row, 0, len(items))
	for _, it := range items {
		f, err := ToFields(it)
		if err != nil || !q.Matches(f) {
			continue
		}
		rows = append(rows, row{item: it, f: f})
	}
	// ties fall back to creation time, oldest first
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].item.Created().Before(rows[j].item.Created())
	})
	if q.OrderBy != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			c := compareValues(rows[i].f[q.OrderBy], rows[j].f[q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
		out = append(out, r.item)
	}
	return out
}

// MergeByID returns remote followed by the local records whose id the remote does not hold.
func MergeByID[T Record](remote, local []T) []T {
	seen := make(map[string]struct{}, len(remote))
	out := make([]T, 0, len(remote)+len(local))
	for _, r := range remote {
		seen[r.Key()] = struct{}{}
		out = append(out, r)
	}
	for _, l := range local {
		if _, dup := seen[l.Key()]; dup {
			continue
		}
		out = append(out, l)
	}
	return out
}

func HasLocal[T Record](items []T) bool {
	for _, it := range items {
		if IsLocalID(it.Key()) {
			return true
		}
	}
	return false
}

func ToFields(v any) (Fields, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var f Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func FromFields[T any](f Fields) (T, error) {
	var out T
	b, err := json.Marshal(f)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compareValues(a, b any) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if at, err := time.Parse(time.RFC3339Nano, as); err == nil {
		if bt, err := time.Parse(time.RFC3339Nano, bs); err == nil {
			return at.Compare(bt)
		}
	}
	return strings.Compare(as, bs)
}
