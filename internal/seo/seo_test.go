package seo_test

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/seo"
)

type stubSource struct {
	props   map[string]domain.Property
	barrios map[string]domain.Neighborhood
	err     error
}

func (s stubSource) Property(ctx context.Context, id string) (domain.Property, error) {
	if s.err != nil {
		return domain.Property{}, s.err
	}
	p, ok := s.props[id]
	if !ok {
		return p, domain.ErrNotFound
	}
	return p, nil
}

func (s stubSource) Event(ctx context.Context, id string) (domain.Event, error) {
	return domain.Event{}, domain.ErrNotFound
}

func (s stubSource) Neighborhood(ctx context.Context, slug string) (domain.Neighborhood, error) {
	n, ok := s.barrios[slug]
	if !ok {
		return n, domain.ErrNotFound
	}
	return n, nil
}

func TestPage_Defaults(t *testing.T) {
	b := seo.NewBuilder("https://example.com/")
	md := b.Page(seo.Page{Title: "Inicio"})
	if md.Title != "Inicio - Alquiler en Florianópolis" {
		t.Fatalf("title %q", md.Title)
	}
	if md.Canonical != "https://example.com" || md.Description != seo.DefaultDescription {
		t.Fatalf("unexpected: %+v", md)
	}
	if len(md.Images) != 1 || md.Images[0].URL != "https://example.com/images/og-default.jpg" || !md.Index {
		t.Fatalf("images/index: %+v", md)
	}
	if seo.NewBuilder("").SiteURL() != seo.DefaultSiteURL {
		t.Fatalf("default site url not applied")
	}
}

func TestProperty_TruncatesDescription(t *testing.T) {
	b := seo.NewBuilder("https://example.com")
	rooms := 3
	p := domain.Property{
		ID: "p1", Title: "Casa Linda", Description: strings.Repeat("á", 200),
		City: "Florianópolis", State: "SC", Currency: "USD", Price: 1500, Period: "diaria",
		Images: []string{"https://img/1.jpg"}, Rooms: &rooms,
	}
	md := b.Property(p)
	head, _, _ := strings.Cut(md.Description, " | ")
	if utf8.RuneCountInString(head) != 155 || !strings.HasSuffix(head, "...") {
		t.Fatalf("description head %d runes", utf8.RuneCountInString(head))
	}
	if !strings.HasSuffix(md.Description, "Precio: USD 1500/día") {
		t.Fatalf("description %q", md.Description)
	}
	if md.Type != "article" || md.Canonical != "https://example.com/propiedades/p1" || md.Images[0].URL != "https://img/1.jpg" {
		t.Fatalf("unexpected: %+v", md)
	}
	sd, ok := md.StructuredData.(map[string]any)
	if !ok || sd["@type"] != "Accommodation" || sd["numberOfRooms"] != 3 {
		t.Fatalf("structured data: %+v", md.StructuredData)
	}
	if _, has := sd["floorSize"]; has {
		t.Fatalf("floorSize set without area")
	}
}

func TestResolve(t *testing.T) {
	b := seo.NewBuilder("https://example.com")
	src := stubSource{
		props:   map[string]domain.Property{"p1": {ID: "p1", Title: "Casa Linda", Currency: "USD", Period: "mensal"}},
		barrios: map[string]domain.Neighborhood{"campeche": {Slug: "campeche", Name: "Campeche", SEODescription: "Sol y mar"}},
	}
	ctx := context.Background()

	cases := []struct {
		path, title string
		index       bool
	}{
		{"/", "Inicio - Alquiler en Florianópolis", true},
		{"/propiedades/p1", "Casa Linda - Alquiler en Florianópolis", true},
		{"/propiedades/nope", "Propiedad no encontrada - Alquiler en Florianópolis", false},
		{"/barrios/campeche/", "Alquiler en Campeche - Alquiler en Florianópolis", true},
		{"/admin/propiedades", "Panel de administración - Alquiler en Florianópolis", false},
		{"/otra/cosa", "Página no encontrada - Alquiler en Florianópolis", false},
	}
	for _, tc := range cases {
		md, err := b.Resolve(ctx, src, tc.path)
		if err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		if md.Title != tc.title || md.Index != tc.index {
			t.Fatalf("%s: got %q index=%v", tc.path, md.Title, md.Index)
		}
	}

	boom := errors.New("boom")
	if _, err := b.Resolve(ctx, stubSource{err: boom}, "/propiedades/p1"); !errors.Is(err, boom) {
		t.Fatalf("want source error, got %v", err)
	}
}

func TestSitemap(t *testing.T) {
	b := seo.NewBuilder("https://example.com")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 2, 10, 8, 30, 0, 0, time.UTC)
	out, err := b.Sitemap(now,
		[]domain.Neighborhood{{Slug: "campeche"}, {Slug: "ingleses"}},
		[]domain.Property{{ID: "p1", UpdatedAt: updated}},
	)
	if err != nil {
		t.Fatalf("sitemap: %v", err)
	}
	var doc struct {
		URLs []struct {
			Loc      string `xml:"loc"`
			LastMod  string `xml:"lastmod"`
			Freq     string `xml:"changefreq"`
			Priority string `xml:"priority"`
		} `xml:"url"`
	}
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.URLs) != 5 {
		t.Fatalf("want 5 urls, got %d", len(doc.URLs))
	}
	if doc.URLs[0].Loc != "https://example.com" || doc.URLs[0].Priority != "1.0" {
		t.Fatalf("home entry: %+v", doc.URLs[0])
	}
	if doc.URLs[2].Loc != "https://example.com/barrios/campeche" || doc.URLs[2].Freq != "weekly" || doc.URLs[2].Priority != "0.85" {
		t.Fatalf("barrio entry: %+v", doc.URLs[2])
	}
	last := doc.URLs[4]
	if last.Loc != "https://example.com/propiedades/p1" || last.LastMod != "2025-02-10T08:30:00Z" || last.Priority != "0.8" {
		t.Fatalf("property entry: %+v", last)
	}
}
