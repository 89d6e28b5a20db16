package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"alquiler_floripa/internal/catalog"
	"alquiler_floripa/internal/domain"
)

// NeighborhoodService manages barrio landing data. It is remote only; the embedded catalog
// stands in for public pages when the remote table is empty or unreachable.
type NeighborhoodService struct {
	remote domain.RemoteTable[domain.Neighborhood]
	inv    Invalidator
}

func NewNeighborhoodService(r domain.RemoteTable[domain.Neighborhood], inv Invalidator) *NeighborhoodService {
	return &NeighborhoodService{remote: r, inv: inv}
}

func (s *NeighborhoodService) List(ctx context.Context, q domain.Query) ([]domain.Neighborhood, error) {
	if q.OrderBy == "" {
		q = q.Order("orden", false)
	}
	return s.remote.List(ctx, q)
}

// Public returns the active barrios, or the built-in catalog when none can be read.
func (s *NeighborhoodService) Public(ctx context.Context) []domain.Neighborhood {
	items, err := s.List(ctx, domain.Query{}.Eq("activo", true))
	if err != nil {
		log.Warn().Err(err).Msg("barrios unavailable, serving built-in catalog")
	}
	if len(items) > 0 {
		return items
	}
	fallback, cerr := catalog.Neighborhoods()
	if cerr != nil {
		log.Error().Err(cerr).Msg("built-in catalog invalid")
		return []domain.Neighborhood{}
	}
	return fallback
}

func (s *NeighborhoodService) Get(ctx context.Context, id string) (domain.Neighborhood, error) {
	return s.remote.Get(ctx, id)
}

// BySlug looks the slug up remotely, then in the built-in catalog.
func (s *NeighborhoodService) BySlug(ctx context.Context, slug string) (domain.Neighborhood, error) {
	slug = domain.NormalizeSlug(slug)
	items, err := s.remote.List(ctx, domain.Query{Limit: 1}.Eq("slug", slug))
	if err == nil && len(items) > 0 {
		return items[0], nil
	}
	if err != nil {
		log.Warn().Err(err).Str("slug", slug).Msg("barrio lookup failed")
	}
	if n, ok := catalog.BySlug(slug); ok {
		return n, nil
	}
	return domain.Neighborhood{}, domain.ErrNotFound
}

func (s *NeighborhoodService) Create(ctx context.Context, in map[string]any) (domain.Neighborhood, error) {
	f, err := domain.NormalizeNeighborhood(in, true)
	if err := domain.JoinValidation(err, domain.CheckRequired(f, domain.NeighborhoodSchema.Required)); err != nil {
		return domain.Neighborhood{}, err
	}
	slug, _ := f["slug"].(string)
	existing, err := s.remote.List(ctx, domain.Query{Limit: 1}.Eq("slug", slug))
	if err != nil {
		return domain.Neighborhood{}, err
	}
	if len(existing) > 0 {
		verr := &domain.ValidationError{}
		verr.Add("slug", "ya existe un barrio con este slug")
		return domain.Neighborhood{}, verr
	}
	n, err := s.remote.Insert(ctx, f)
	if err != nil {
		return n, err
	}
	s.invalidate(ctx)
	return n, nil
}

// Update ignores any submitted slug.
func (s *NeighborhoodService) Update(ctx context.Context, id string, in map[string]any) (domain.Neighborhood, error) {
	f, err := domain.NormalizeNeighborhood(in, false)
	f = f.Without(domain.NeighborhoodSchema.Immutable...)
	if err := domain.JoinValidation(err, checkPresent(f, domain.NeighborhoodSchema.Required)); err != nil {
		return domain.Neighborhood{}, err
	}
	n, err := s.remote.Update(ctx, id, f)
	if err != nil {
		return n, err
	}
	s.invalidate(ctx)
	return n, nil
}

func (s *NeighborhoodService) Delete(ctx context.Context, id string) error {
	if err := s.remote.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Seed inserts every catalog barrio whose slug is not stored yet.
func (s *NeighborhoodService) Seed(ctx context.Context, n domain.Neighborhood) (created bool, err error) {
	_, err = s.Create(ctx, catalog.Seed(n))
	var verr *domain.ValidationError
	if errors.As(err, &verr) && verr.Fields["slug"] != "" {
		return false, nil
	}
	return err == nil, err
}

func (s *NeighborhoodService) invalidate(ctx context.Context) {
	if s.inv != nil {
		s.inv.Invalidate(ctx)
	}
}
