package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"alquiler_floripa/internal/app"
	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/seo"
)

// Handlers serves the public site API.
type Handlers struct {
	Q   *app.QueryService
	SEO *seo.Builder
	// Production trims remote failures to the backend code and message.
	Production bool
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Group(func(r chi.Router) {
		r.Use(s.cors.Handler)
		r.Use(Timeout(requestTimeout))
		r.Get("/sitemap.xml", h.sitemap)
		r.Get("/api/home", h.home)
		r.Get("/api/propiedades", h.listProperties)
		r.Get("/api/propiedades/{id}", h.getProperty)
		r.Get("/api/barrios", h.listBarrios)
		r.Get("/api/barrios/{slug}", h.getBarrio)
		r.Get("/api/eventos", h.listEvents)
		r.Get("/api/banners", h.listBanners)
		r.Get("/api/seo", h.pageMetadata)
		// preflight is answered by the CORS handler
		r.Options("/api/*", func(http.ResponseWriter, *http.Request) {})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	p.Type = "about:blank"
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors to problem responses.
func writeError(w http.ResponseWriter, err error, production bool) {
	var (
		verr *domain.ValidationError
		cerr *domain.CapacityError
		rerr *domain.RemoteError
	)
	switch {
	case errors.As(err, &verr):
		writeProblemBody(w, problem{Title: "Validation Failed", Status: http.StatusUnprocessableEntity, Detail: "revise los campos marcados", Fields: verr.Fields})
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &cerr):
		writeProblem(w, http.StatusInsufficientStorage, "Local Storage Full", cerr.Error())
	case errors.Is(err, app.ErrUnauthenticated), errors.Is(err, app.ErrInvalidCredentials):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, app.ErrFallbackDisabled):
		writeProblem(w, http.StatusConflict, "Fallback Disabled", err.Error())
	case errors.As(err, &rerr):
		detail := rerr.Message
		if !production {
			detail = rerr.Error()
		}
		writeProblemBody(w, problem{Title: "Remote Store Error", Status: http.StatusBadGateway, Detail: detail, Code: rerr.Code})
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached writes v as JSON with a weak ETag, answering 304 when the client has it.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func (h *Handlers) home(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Q.Home(r.Context()))
}

func parseFilter(r *http.Request) (app.PropertyFilter, error) {
	q := r.URL.Query()
	f := app.PropertyFilter{
		Tipo:      q.Get("tipo"),
		Ciudad:    strings.TrimSpace(q.Get("ciudad")),
		Provincia: strings.TrimSpace(q.Get("provincia")),
		Regiao:    q.Get("regiao"),
		Barrio:    q.Get("barrio"),
		Zona:      q.Get("zona"),
	}
	verr := &domain.ValidationError{}
	num := func(k string) *float64 {
		s := strings.TrimSpace(q.Get(k))
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil || v < 0 {
			verr.Add(k, "debe ser un número válido")
			return nil
		}
		return &v
	}
	f.PrecioMin = num("precio_min")
	f.PrecioMax = num("precio_max")
	if s := strings.TrimSpace(q.Get("habitaciones")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			verr.Add("habitaciones", "debe ser un número entero")
		} else {
			f.Habitaciones = &n
		}
	}
	return f, verr.OrNil()
}

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, err, h.Production)
		return
	}
	writeCached(w, r, h.Q.Properties(r.Context(), f))
}

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Q.Property(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, h.Production)
		return
	}
	writeCached(w, r, p)
}

func (h *Handlers) listBarrios(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Q.Barrios(r.Context()))
}

func (h *Handlers) getBarrio(w http.ResponseWriter, r *http.Request) {
	v, err := h.Q.Barrio(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err, h.Production)
		return
	}
	writeCached(w, r, v)
}

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Q.Events(r.Context()))
}

func (h *Handlers) listBanners(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Q.Banners(r.Context()))
}

func (h *Handlers) pageMetadata(w http.ResponseWriter, r *http.Request) {
	md, err := h.SEO.Resolve(r.Context(), h.Q, r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, err, h.Production)
		return
	}
	writeCached(w, r, md)
}

func (h *Handlers) sitemap(w http.ResponseWriter, r *http.Request) {
	out, err := h.SEO.Sitemap(time.Now(), h.Q.Barrios(r.Context()), h.Q.SitemapProperties(r.Context()))
	if err != nil {
		writeError(w, err, h.Production)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		log.Error().Err(err).Msg("failed to write sitemap")
	}
}
