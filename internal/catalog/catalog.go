// Package catalog holds the built-in neighborhood catalog.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/goccy/go-yaml"

	"alquiler_floripa/internal/domain"
)

//go:embed barrios.yaml
var barriosYAML []byte

type entry struct {
	Slug           string   `yaml:"slug"`
	Name           string   `yaml:"nombre"`
	Description    string   `yaml:"descripcion"`
	SEODescription string   `yaml:"descripcion_seo"`
	Keywords       []string `yaml:"keywords"`
	Region         string   `yaml:"regiao"`
	CoverImage     string   `yaml:"cover_image"`
	Highlights     []string `yaml:"highlights"`
}

var (
	once    sync.Once
	loaded  []domain.Neighborhood
	loadErr error
)

func parse(b []byte) ([]domain.Neighborhood, error) {
	var es []entry
	if err := yaml.Unmarshal(b, &es); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	out := make([]domain.Neighborhood, 0, len(es))
	for i, e := range es {
		if !domain.IsNeighborhoodSlug(e.Slug) {
			return nil, fmt.Errorf("catalog: unknown slug %q", e.Slug)
		}
		if !domain.IsRegion(e.Region) {
			return nil, fmt.Errorf("catalog: %s: unknown region %q", e.Slug, e.Region)
		}
		out = append(out, domain.Neighborhood{
			ID:             e.Slug,
			Slug:           e.Slug,
			Name:           e.Name,
			Description:    e.Description,
			SEODescription: e.SEODescription,
			Keywords:       e.Keywords,
			Region:         e.Region,
			CoverImage:     e.CoverImage,
			Highlights:     e.Highlights,
			Active:         true,
			Order:          i,
		})
	}
	return out, nil
}

// Neighborhoods returns a copy of the embedded catalog in display order.
func Neighborhoods() ([]domain.Neighborhood, error) {
	once.Do(func() { loaded, loadErr = parse(barriosYAML) })
	if loadErr != nil {
		return nil, loadErr
	}
	out := make([]domain.Neighborhood, len(loaded))
	copy(out, loaded)
	return out, nil
}

func BySlug(slug string) (domain.Neighborhood, bool) {
	all, err := Neighborhoods()
	if err != nil {
		return domain.Neighborhood{}, false
	}
	for _, n := range all {
		if n.Slug == slug {
			return n, true
		}
	}
	return domain.Neighborhood{}, false
}

// Seed is the field set used to insert n into the remote store.
func Seed(n domain.Neighborhood) domain.Fields {
	return domain.Fields{
		"slug":            n.Slug,
		"nombre":          n.Name,
		"descripcion":     n.Description,
		"descripcion_seo": n.SEODescription,
		"keywords":        n.Keywords,
		"regiao":          n.Region,
		"cover_image":     n.CoverImage,
		"highlights":      n.Highlights,
		"activo":          n.Active,
		"orden":           n.Order,
	}
}
