package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"alquiler_floripa/internal/domain"
)

const viewPrefix = "view:"

type lister[T domain.Record] interface {
	List(ctx context.Context, q domain.Query) ListResult[T]
	Get(ctx context.Context, id string) (T, error)
}

type HomeView struct {
	Banners    []domain.Banner       `json:"banners"`
	Properties []domain.Property     `json:"propiedades"`
	Events     []domain.Event        `json:"eventos"`
	Barrios    []domain.Neighborhood `json:"barrios"`
}

type BarrioView struct {
	Barrio     domain.Neighborhood `json:"barrio"`
	Properties []domain.Property   `json:"propiedades"`
}

// PropertyFilter is the public listing's search form.
type PropertyFilter struct {
	Tipo         string
	Ciudad       string
	Provincia    string
	PrecioMin    *float64
	PrecioMax    *float64
	Habitaciones *int
	Regiao       string
	Barrio       string
	Zona         string // norte | sul
}

func (f PropertyFilter) Query() domain.Query {
	q := domain.Query{}.Eq("disponible", true).Order("created_at", true)
	if cities, ok := domain.Zones[f.Zona]; ok {
		q = q.ContainsAny("ciudad", cities)
	}
	if f.Barrio != "" {
		q = q.Eq("barrio", f.Barrio)
	}
	if f.Regiao != "" {
		q = q.Eq("regiao", f.Regiao)
	}
	if f.Tipo != "" {
		q = q.Eq("tipo", f.Tipo)
	}
	if f.Ciudad != "" {
		q = q.Contains("ciudad", f.Ciudad)
	}
	if f.Provincia != "" {
		q = q.Contains("provincia", f.Provincia)
	}
	if f.PrecioMin != nil {
		q = q.Gte("precio", *f.PrecioMin)
	}
	if f.PrecioMax != nil {
		q = q.Lte("precio", *f.PrecioMax)
	}
	if f.Habitaciones != nil {
		q = q.Eq("habitaciones", *f.Habitaciones)
	}
	return q
}

// QueryService serves the public views, cache-aside with a TTL. Results built from a failed
// remote read are not cached.
type QueryService struct {
	props    lister[domain.Property]
	banners  lister[domain.Banner]
	events   lister[domain.Event]
	barrios  *NeighborhoodService
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewQueryService(props lister[domain.Property], banners lister[domain.Banner], events lister[domain.Event],
	barrios *NeighborhoodService, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{props: props, banners: banners, events: events, barrios: barrios, cache: c, cacheTTL: ttl, now: time.Now}
}

func cached[T any](ctx context.Context, s *QueryService, key string, load func() (T, bool)) T {
	var out T
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, viewPrefix+key, &out); ok {
			return out
		}
	}
	out, ok := load()
	if ok && s.cache != nil {
		if err := s.cache.Set(ctx, viewPrefix+key, out, int(s.cacheTTL.Seconds())); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("view cache set failed")
		}
	}
	return out
}

func (s *QueryService) today() string { return s.now().Format(time.DateOnly) }

func (s *QueryService) Home(ctx context.Context) HomeView {
	return cached(ctx, s, "home:"+s.today(), func() (HomeView, bool) {
		var hv HomeView
		var bannersOK, propsOK, eventsOK bool
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			r := s.banners.List(gctx, domain.Query{}.Eq("activo", true).Order("orden", false))
			hv.Banners, bannersOK = r.Items, !r.Degraded
			return nil
		})
		g.Go(func() error {
			r := s.props.List(gctx, domain.Query{Limit: 6}.Eq("disponible", true).Order("created_at", true))
			hv.Properties, propsOK = r.Items, !r.Degraded
			return nil
		})
		g.Go(func() error {
			r := s.events.List(gctx, s.upcoming(6))
			hv.Events, eventsOK = r.Items, !r.Degraded
			return nil
		})
		g.Go(func() error {
			hv.Barrios = s.barrios.Public(gctx)
			return nil
		})
		_ = g.Wait()
		return hv, bannersOK && propsOK && eventsOK
	})
}

func (s *QueryService) upcoming(limit int) domain.Query {
	return domain.Query{Limit: limit}.Eq("ativo", true).Gte("fecha_inicio", s.today()).Order("fecha_inicio", false)
}

func (s *QueryService) Properties(ctx context.Context, f PropertyFilter) []domain.Property {
	q := f.Query()
	return cached(ctx, s, "props:"+q.CacheKey(), func() ([]domain.Property, bool) {
		r := s.props.List(ctx, q)
		return r.Items, !r.Degraded
	})
}

// Property returns an available property.
func (s *QueryService) Property(ctx context.Context, id string) (domain.Property, error) {
	var p domain.Property
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, viewPrefix+"prop:"+id, &p); ok {
			return p, nil
		}
	}
	p, err := s.props.Get(ctx, id)
	if err != nil {
		return domain.Property{}, err
	}
	if !p.Available {
		return domain.Property{}, domain.ErrNotFound
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, viewPrefix+"prop:"+id, p, int(s.cacheTTL.Seconds()))
	}
	return p, nil
}

// Event returns an active event.
func (s *QueryService) Event(ctx context.Context, id string) (domain.Event, error) {
	e, err := s.events.Get(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}
	if !e.Active {
		return domain.Event{}, domain.ErrNotFound
	}
	return e, nil
}

func (s *QueryService) Banners(ctx context.Context) []domain.Banner {
	q := domain.Query{}.Eq("activo", true).Order("orden", false)
	return cached(ctx, s, "banners", func() ([]domain.Banner, bool) {
		r := s.banners.List(ctx, q)
		return r.Items, !r.Degraded
	})
}

func (s *QueryService) Events(ctx context.Context) []domain.Event {
	return cached(ctx, s, "events:"+s.today(), func() ([]domain.Event, bool) {
		r := s.events.List(ctx, s.upcoming(0))
		return r.Items, !r.Degraded
	})
}

func (s *QueryService) Barrios(ctx context.Context) []domain.Neighborhood {
	return cached(ctx, s, "barrios", func() ([]domain.Neighborhood, bool) {
		return s.barrios.Public(ctx), true
	})
}

func (s *QueryService) Neighborhood(ctx context.Context, slug string) (domain.Neighborhood, error) {
	return s.barrios.BySlug(ctx, slug)
}

// Barrio returns the landing view of one neighborhood with its available properties.
func (s *QueryService) Barrio(ctx context.Context, slug string) (BarrioView, error) {
	slug = domain.NormalizeSlug(slug)
	n, err := s.barrios.BySlug(ctx, slug)
	if err != nil {
		return BarrioView{}, err
	}
	props := s.Properties(ctx, PropertyFilter{Barrio: n.Slug})
	return BarrioView{Barrio: n, Properties: props}, nil
}

// SitemapProperties lists every available property without caching.
func (s *QueryService) SitemapProperties(ctx context.Context) []domain.Property {
	return s.props.List(ctx, domain.Query{}.Eq("disponible", true).Order("updated_at", true)).Items
}

// Invalidate drops every cached public view.
func (s *QueryService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DelPrefix(ctx, viewPrefix); err != nil {
		log.Warn().Err(err).Msg("view cache invalidation failed")
	}
}
