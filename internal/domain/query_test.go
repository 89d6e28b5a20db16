package domain_test

import (
	"strings"
	"testing"
	"time"

	"alquiler_floripa/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestApply_FiltersAndOrders(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []domain.Property{
		{ID: "1", City: "Jurerê", Price: 900, Available: true, CreatedAt: t0},
		{ID: "2", City: "Campeche", Price: 1500, Available: true, CreatedAt: t0.Add(time.Hour)},
		{ID: "3", City: "Ingleses", Price: 2500, Available: false, CreatedAt: t0.Add(2 * time.Hour)},
		{ID: "4", City: "Canasvieiras", Price: 1200, Available: true, CreatedAt: t0.Add(3 * time.Hour)},
	}

	q := domain.Query{}.Eq("disponible", true).Gte("precio", 1000).Order("created_at", true)
	got := domain.Apply(items, q)
	if len(got) != 2 || got[0].ID != "4" || got[1].ID != "2" {
		t.Fatalf("unexpected: %+v", ids(got))
	}

	zona := domain.Query{}.ContainsAny("ciudad", domain.Zones["norte"])
	if got := domain.Apply(items, zona); len(got) != 3 {
		t.Fatalf("norte zone: %v", ids(got))
	}

	lim := domain.Query{Limit: 1}.Order("precio", false)
	if got := domain.Apply(items, lim); len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("limit: %v", ids(got))
	}
}

func TestApply_OrderTieBreaksByCreation(t *testing.T) {
	t0 := time.Now()
	items := []domain.Banner{
		{ID: "b", Order: 1, CreatedAt: t0.Add(time.Second)},
		{ID: "a", Order: 1, CreatedAt: t0},
		{ID: "c", Order: 0, CreatedAt: t0.Add(2 * time.Second)},
	}
	got := domain.Apply(items, domain.Query{}.Order("orden", false))
	if strings.Join(ids(got), ",") != "c,a,b" {
		t.Fatalf("order: %v", ids(got))
	}
}

func TestMergeByID_RemoteWins(t *testing.T) {
	remote := []domain.Event{{ID: "1", Title: "remote"}}
	local := []domain.Event{{ID: "1", Title: "local"}, {ID: "local-1-x", Title: "offline"}}
	got := domain.MergeByID(remote, local)
	if len(got) != 2 || got[0].Title != "remote" || got[1].ID != "local-1-x" {
		t.Fatalf("merge: %+v", got)
	}
	if !domain.HasLocal(got) || domain.HasLocal(remote) {
		t.Fatalf("HasLocal misreported")
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	p := domain.Property{ID: "x", Title: "T", Rooms: ptr(2), Available: false}
	f, err := domain.ToFields(p)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if f["disponible"] != false || f["habitaciones"] != 2.0 {
		t.Fatalf("fields: %+v", f)
	}
	back, err := domain.FromFields[domain.Property](f)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if back.Available || back.Rooms == nil || *back.Rooms != 2 {
		t.Fatalf("round trip: %+v", back)
	}
}

func TestQuery_CacheKeyStable(t *testing.T) {
	a := domain.Query{}.Eq("tipo", "casa").Gte("precio", 10)
	b := domain.Query{}.Gte("precio", 10).Eq("tipo", "casa")
	if a.CacheKey() != b.CacheKey() {
		t.Fatalf("%q != %q", a.CacheKey(), b.CacheKey())
	}
}

func ids[T domain.Record](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key()
	}
	return out
}

func TestApply_DateRange(t *testing.T) {
	items := []domain.Event{
		{ID: "past", StartDate: "2024-12-31", Active: true},
		{ID: "today", StartDate: "2025-01-01", Active: true},
		{ID: "later", StartDate: "2025-03-10", Active: true},
	}
	got := domain.Apply(items, domain.Query{}.Gte("fecha_inicio", "2025-01-01").Order("fecha_inicio", false))
	if strings.Join(ids(got), ",") != "today,later" {
		t.Fatalf("date filter: %v", ids(got))
	}
}
