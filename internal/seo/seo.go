// Package seo builds page metadata, structured data and the sitemap for the public site.
package seo

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"alquiler_floripa/internal/domain"
)

const (
	SiteName           = "Alquiler en Florianópolis"
	DefaultSiteURL     = "https://alquilerenflorianopolis.com"
	DefaultDescription = "Encuentra tu alojamiento perfecto para la temporada en Florianópolis. Casas, departamentos y más cerca de las mejores playas de Brasil. Reserva ahora y disfruta de la mejor temporada en Floripa."

	maxDescription = 155
	ogWidth        = 1200
	ogHeight       = 630
)

type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Alt    string `json:"alt"`
}

type Metadata struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Canonical   string  `json:"canonical"`
	SiteName    string  `json:"site_name"`
	Type        string  `json:"type"` // website | article
	Locale      string  `json:"locale"`
	Images      []Image `json:"images"`
	TwitterCard string  `json:"twitter_card"`
	Index       bool    `json:"index"`
	Follow      bool    `json:"follow"`
	// JSON-LD for property pages.
	StructuredData any `json:"structured_data,omitempty"`
}

type Page struct {
	Title       string
	Description string
	Path        string
	Image       string
	Article     bool
	NoIndex     bool
}

type Builder struct {
	siteURL string
}

func NewBuilder(siteURL string) *Builder {
	siteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if siteURL == "" {
		siteURL = DefaultSiteURL
	}
	return &Builder{siteURL: siteURL}
}

func (b *Builder) SiteURL() string { return b.siteURL }

func (b *Builder) Page(p Page) Metadata {
	desc := p.Description
	if desc == "" {
		desc = DefaultDescription
	}
	img := p.Image
	if img == "" {
		img = b.siteURL + "/images/og-default.jpg"
	}
	kind := "website"
	if p.Article {
		kind = "article"
	}
	return Metadata{
		Title:       p.Title + " - " + SiteName,
		Description: desc,
		Canonical:   b.siteURL + p.Path,
		SiteName:    SiteName,
		Type:        kind,
		Locale:      "es_AR",
		Images:      []Image{{URL: img, Width: ogWidth, Height: ogHeight, Alt: p.Title}},
		TwitterCard: "summary_large_image",
		Index:       !p.NoIndex,
		Follow:      !p.NoIndex,
	}
}

// truncate cuts s to the snippet length search engines display.
func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxDescription {
		return s
	}
	return string(r[:maxDescription-3]) + "..."
}

func formatPrice(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func (b *Builder) Property(p domain.Property) Metadata {
	period := "mes"
	if p.Period == "diaria" {
		period = "día"
	}
	var img string
	if len(p.Images) > 0 {
		img = p.Images[0]
	}
	desc := fmt.Sprintf("%s | %s, %s. Precio: %s %s/%s",
		truncate(p.Description), p.City, p.State, p.Currency, formatPrice(p.Price), period)
	md := b.Page(Page{Title: p.Title, Description: desc, Path: "/propiedades/" + p.ID, Image: img, Article: true})
	md.StructuredData = StructuredData(p)
	return md
}

func (b *Builder) Event(e domain.Event) Metadata {
	var img string
	if e.Image != nil {
		img = *e.Image
	}
	return b.Page(Page{
		Title:       e.Title,
		Description: fmt.Sprintf("%s | %s, %s", truncate(e.Description), e.Location, e.City),
		Path:        "/eventos/" + e.ID,
		Image:       img,
		Article:     true,
	})
}

func (b *Builder) Barrio(n domain.Neighborhood) Metadata {
	return b.Page(Page{
		Title:       "Alquiler en " + n.Name,
		Description: n.SEODescription,
		Path:        "/barrios/" + n.Slug,
		Image:       n.CoverImage,
	})
}

// StructuredData is the schema.org Accommodation object of a property.
func StructuredData(p domain.Property) map[string]any {
	postal := ""
	if p.PostalCode != nil {
		postal = *p.PostalCode
	}
	sd := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "Accommodation",
		"name":        p.Title,
		"description": p.Description,
		"address": map[string]any{
			"@type":           "PostalAddress",
			"streetAddress":   p.Address,
			"addressLocality": p.City,
			"addressRegion":   p.State,
			"postalCode":      postal,
			"addressCountry":  "BR",
		},
		"priceRange": p.Currency + " " + formatPrice(p.Price),
	}
	if len(p.Images) > 0 {
		sd["image"] = p.Images
	}
	if p.Rooms != nil && *p.Rooms > 0 {
		sd["numberOfRooms"] = *p.Rooms
	}
	if p.Bathrooms != nil && *p.Bathrooms > 0 {
		sd["numberOfBathroomsTotal"] = *p.Bathrooms
	}
	if p.AreaM2 != nil && *p.AreaM2 > 0 {
		sd["floorSize"] = map[string]any{"@type": "QuantitativeValue", "value": *p.AreaM2, "unitCode": "MTK"}
	}
	return sd
}

// Source is the read side the resolver needs.
type Source interface {
	Property(ctx context.Context, id string) (domain.Property, error)
	Event(ctx context.Context, id string) (domain.Event, error)
	Neighborhood(ctx context.Context, slug string) (domain.Neighborhood, error)
}

// Resolve returns the metadata of a public path. Unknown records get a noindex not-found page.
func (b *Builder) Resolve(ctx context.Context, src Source, path string) (Metadata, error) {
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")

	switch {
	case path == "/":
		return b.Page(Page{Title: "Inicio", Path: ""}), nil
	case parts[0] == "admin" || parts[0] == "dashboard" || parts[0] == "login":
		return b.Page(Page{Title: "Panel de administración", Path: path, NoIndex: true}), nil
	case path == "/propiedades":
		return b.Page(Page{
			Title:       "Propiedades",
			Description: "Casas y departamentos en alquiler por temporada en Florianópolis.",
			Path:        path,
		}), nil
	case path == "/eventos":
		return b.Page(Page{Title: "Eventos", Description: "Próximos eventos en Florianópolis.", Path: path}), nil
	case path == "/barrios":
		return b.Page(Page{Title: "Barrios", Description: "Conocé los barrios de Florianópolis.", Path: path}), nil
	case len(parts) == 2 && parts[0] == "propiedades":
		p, err := src.Property(ctx, parts[1])
		if errors.Is(err, domain.ErrNotFound) {
			return b.notFound("Propiedad no encontrada", "La propiedad que buscas no está disponible.", path), nil
		}
		if err != nil {
			return Metadata{}, err
		}
		return b.Property(p), nil
	case len(parts) == 2 && parts[0] == "eventos":
		e, err := src.Event(ctx, parts[1])
		if errors.Is(err, domain.ErrNotFound) {
			return b.notFound("Evento no encontrado", "El evento que buscas no está disponible.", path), nil
		}
		if err != nil {
			return Metadata{}, err
		}
		return b.Event(e), nil
	case len(parts) == 2 && parts[0] == "barrios":
		n, err := src.Neighborhood(ctx, parts[1])
		if errors.Is(err, domain.ErrNotFound) {
			return b.notFound("Barrio no encontrado", "El barrio que buscas no existe.", path), nil
		}
		if err != nil {
			return Metadata{}, err
		}
		return b.Barrio(n), nil
	}
	return b.notFound("Página no encontrada", "", path), nil
}

func (b *Builder) notFound(title, desc, path string) Metadata {
	return b.Page(Page{Title: title, Description: desc, Path: path, NoIndex: true})
}

// ---- sitemap ----

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Sitemap renders the home page, the listing, every barrio and every given property.
func (b *Builder) Sitemap(now time.Time, barrios []domain.Neighborhood, props []domain.Property) ([]byte, error) {
	set := urlset{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	add := func(path string, mod time.Time, freq, prio string) {
		set.URLs = append(set.URLs, sitemapURL{
			Loc: b.siteURL + path, LastMod: mod.UTC().Format(time.RFC3339), ChangeFreq: freq, Priority: prio,
		})
	}
	add("", now, "daily", "1.0")
	add("/propiedades", now, "daily", "0.9")
	for _, n := range barrios {
		add("/barrios/"+n.Slug, now, "weekly", "0.85")
	}
	for _, p := range props {
		mod := p.UpdatedAt
		if mod.IsZero() {
			mod = now
		}
		add("/propiedades/"+p.ID, mod, "weekly", "0.8")
	}
	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
