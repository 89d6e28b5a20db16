package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"alquiler_floripa/internal/app"
	"alquiler_floripa/internal/domain"
)

// form textareas submit one entry per line for these keys
var listKeys = map[string]bool{"imagenes": true, "caracteristicas": true, "keywords": true, "highlights": true}

// Admin serves the session-gated management API.
type Admin struct {
	Auth       *app.AuthService
	Modes      *app.Modes
	Prober     *app.Prober
	Properties *app.Coordinator[domain.Property]
	Banners    *app.Coordinator[domain.Banner]
	Events     *app.Coordinator[domain.Event]
	Barrios    *app.NeighborhoodService
	Images     *app.ImageService
	Storage    *app.StorageService
	SessionTTL time.Duration
	Production bool

	// MaxBodyBytes caps admin write bodies; zero sizes it for the default mirror.
	MaxBodyBytes int64
}

type adminList[T domain.Record] struct {
	app.ListResult[T]
	Mode     app.ModeState `json:"mode"`
	Fallback bool          `json:"fallback"`
}

type statusView struct {
	Mode     app.ModeState `json:"mode"`
	Fallback bool          `json:"fallback"`
}

func (s *Server) MountAdmin(a *Admin) {
	propsOrder := domain.Query{}.Order("created_at", true)
	bannersOrder := domain.Query{}.Order("orden", false)
	eventsOrder := domain.Query{}.Order("fecha_inicio", false)

	s.mux.Route("/admin", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(Timeout(requestTimeout))
			r.Post("/login", a.login)

			r.Group(func(r chi.Router) {
				r.Use(RequireSession(a.Auth))
				r.Post("/logout", a.logout)
				r.Get("/status", a.status)

				mountEntity(r, a, "propiedades", a.Properties, propsOrder)
				mountEntity(r, a, "banners", a.Banners, bannersOrder)
				mountEntity(r, a, "eventos", a.Events, eventsOrder)

				r.Get("/barrios", a.listBarrios)
				r.Post("/barrios", a.createBarrio)
				r.Get("/barrios/{id}", a.getBarrio)
				r.Put("/barrios/{id}", a.updateBarrio)
				r.Post("/barrios/{id}", a.updateBarrio)
				r.Delete("/barrios/{id}", a.deleteBarrio)

				r.Post("/uploads", a.upload)

				r.Get("/storage", a.storageUsage)
				r.Delete("/storage", a.storageClear)
				r.Delete("/storage/{collection}/{id}", a.storageDelete)
			})
		})

		// event streams stay outside the timeout
		r.Group(func(r chi.Router) {
			r.Use(RequireSession(a.Auth))
			mountStream(r, a, "propiedades", a.Properties, propsOrder)
			mountStream(r, a, "banners", a.Banners, bannersOrder)
			mountStream(r, a, "eventos", a.Events, eventsOrder)
		})
	})
}

func (a *Admin) mode(r *http.Request) *app.Mode {
	s, ok := sessionFrom(r.Context())
	if !ok {
		return nil
	}
	return a.Modes.For(s.ID)
}

func (a *Admin) fail(w http.ResponseWriter, err error) { writeError(w, err, a.Production) }

func isForm(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"
}

var errBadBody = errors.New("request body must be a JSON object or a form")

func (a *Admin) bodyLimit() int64 {
	if a.MaxBodyBytes > 0 {
		return a.MaxBodyBytes
	}
	return app.AdminBodyLimit(0)
}

// badInput answers a body readInput rejected.
func (a *Admin) badInput(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large",
			fmt.Sprintf("el contenido supera %.1f MB; use imágenes más livianas o súbalas cuando el almacenamiento remoto esté disponible",
				float64(mbe.Limit)/(1024*1024)))
		return
	}
	writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
}

// readInput decodes a JSON object or a submitted form into raw field values.
func (a *Admin) readInput(w http.ResponseWriter, r *http.Request) (map[string]any, bool, error) {
	limit := a.bodyLimit()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if !isForm(r) {
		var in map[string]any
		err := json.NewDecoder(r.Body).Decode(&in)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, false, err
		}
		if err != nil || in == nil {
			return nil, false, errBadBody
		}
		return in, false, nil
	}

	var err error
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		err = r.ParseMultipartForm(limit)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, true, err
		}
		return nil, true, errBadBody
	}
	in := make(map[string]any, len(r.PostForm))
	for k, vs := range r.PostForm {
		switch {
		case listKeys[k]:
			var items []string
			for _, v := range vs {
				items = append(items, strings.Split(strings.ReplaceAll(v, "\r\n", "\n"), "\n")...)
			}
			in[k] = items
		case len(vs) == 1:
			in[k] = vs[0]
		default:
			in[k] = vs[len(vs)-1] // checkbox + hidden input pairs
		}
	}
	return in, true, nil
}

// done answers a successful write: 303 back to the listing for forms, JSON otherwise.
func done(w http.ResponseWriter, r *http.Request, form bool, listing string, status int, v any) {
	if form {
		http.Redirect(w, r, "/admin/"+listing, http.StatusSeeOther)
		return
	}
	writeJSON(w, status, v)
}

// ---- session ----

func (a *Admin) login(w http.ResponseWriter, r *http.Request) {
	in, form, err := a.readInput(w, r)
	if err != nil {
		a.badInput(w, err)
		return
	}
	email, _ := in["email"].(string)
	password, _ := in["password"].(string)
	sess, err := a.Auth.Login(r.Context(), email, password)
	if err != nil {
		log.Warn().Str("remote", remoteIP(r)).Msg("admin login rejected")
		a.fail(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(a.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.Production,
		SameSite: http.SameSiteLaxMode,
	})

	mode := a.Modes.For(sess.ID)
	mode.Apply(a.Prober.Probe(r.Context()))
	log.Info().Str("email", sess.Email).Bool("degraded", mode.Degraded()).Msg("admin login")

	if form {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, statusView{Mode: mode.State(), Fallback: !a.Production})
}

func (a *Admin) logout(w http.ResponseWriter, r *http.Request) {
	if s, ok := sessionFrom(r.Context()); ok {
		if err := a.Auth.Logout(r.Context(), s.ID); err != nil {
			log.Warn().Err(err).Msg("session delete failed")
		}
		a.Modes.Drop(s.ID)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	if isForm(r) {
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// status re-probes the remote store; a reachable answer brings a degraded session back.
func (a *Admin) status(w http.ResponseWriter, r *http.Request) {
	mode := a.mode(r)
	mode.Apply(a.Prober.Probe(r.Context()))
	writeJSON(w, http.StatusOK, statusView{Mode: mode.State(), Fallback: !a.Production})
}

// ---- coordinated entities ----

func mountEntity[T domain.Record](r chi.Router, a *Admin, name string, c *app.Coordinator[T], order domain.Query) {
	r.Get("/"+name, func(w http.ResponseWriter, req *http.Request) {
		res := c.List(req.Context(), order)
		writeJSON(w, http.StatusOK, adminList[T]{ListResult: res, Mode: a.mode(req).State(), Fallback: c.Fallback()})
	})

	r.Post("/"+name, func(w http.ResponseWriter, req *http.Request) {
		in, form, err := a.readInput(w, req)
		if err != nil {
			a.badInput(w, err)
			return
		}
		rec, err := c.Create(req.Context(), a.mode(req), in)
		if err != nil {
			a.fail(w, err)
			return
		}
		w.Header().Set("Location", "/admin/"+name+"/"+rec.Key())
		done(w, req, form, name, http.StatusCreated, rec)
	})

	r.Get("/"+name+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		rec, err := c.Get(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	update := func(w http.ResponseWriter, req *http.Request) {
		in, form, err := a.readInput(w, req)
		if err != nil {
			a.badInput(w, err)
			return
		}
		rec, err := c.Update(req.Context(), a.mode(req), chi.URLParam(req, "id"), in)
		if err != nil {
			a.fail(w, err)
			return
		}
		done(w, req, form, name, http.StatusOK, rec)
	}
	r.Put("/"+name+"/{id}", update)
	r.Post("/"+name+"/{id}", update)

	r.Delete("/"+name+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		if err := c.Delete(req.Context(), chi.URLParam(req, "id")); err != nil {
			a.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// mountStream serves merged listings as server-sent events whenever the local mirror changes.
func mountStream[T domain.Record](r chi.Router, a *Admin, name string, c *app.Coordinator[T], order domain.Query) {
	r.Get("/"+name+"/stream", func(w http.ResponseWriter, req *http.Request) {
		fl, ok := w.(http.Flusher)
		if !ok {
			writeProblem(w, http.StatusInternalServerError, "Streaming Unsupported", "response writer cannot flush")
			return
		}
		ch, err := c.Watch(req.Context(), order)
		if err != nil {
			a.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		fl.Flush()

		for res := range ch {
			b, err := json.Marshal(res)
			if err != nil {
				log.Error().Err(err).Str("entity", name).Msg("stream encode failed")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", b); err != nil {
				return
			}
			fl.Flush()
		}
	})
}

// ---- barrios ----

func (a *Admin) listBarrios(w http.ResponseWriter, r *http.Request) {
	items, err := a.Barrios.List(r.Context(), domain.Query{})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *Admin) getBarrio(w http.ResponseWriter, r *http.Request) {
	n, err := a.Barrios.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *Admin) createBarrio(w http.ResponseWriter, r *http.Request) {
	in, form, err := a.readInput(w, r)
	if err != nil {
		a.badInput(w, err)
		return
	}
	n, err := a.Barrios.Create(r.Context(), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Location", "/admin/barrios/"+n.ID)
	done(w, r, form, "barrios", http.StatusCreated, n)
}

func (a *Admin) updateBarrio(w http.ResponseWriter, r *http.Request) {
	in, form, err := a.readInput(w, r)
	if err != nil {
		a.badInput(w, err)
		return
	}
	n, err := a.Barrios.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	done(w, r, form, "barrios", http.StatusOK, n)
}

func (a *Admin) deleteBarrio(w http.ResponseWriter, r *http.Request) {
	if err := a.Barrios.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- uploads ----

func (a *Admin) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxImageBytes+64<<10)
	if err := r.ParseMultipartForm(app.MaxImageBytes + 64<<10); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "la imagen es demasiado grande")
			return
		}
		writeProblem(w, http.StatusBadRequest, "Bad Request", "multipart form expected")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "missing file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "unreadable file")
		return
	}
	res, err := a.Images.Upload(r.Context(), r.FormValue("folder"), hdr.Filename, data)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ---- local storage ----

func (a *Admin) storageUsage(w http.ResponseWriter, r *http.Request) {
	rep, err := a.Storage.Usage(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *Admin) storageClear(w http.ResponseWriter, r *http.Request) {
	if err := a.Storage.ClearAll(r.Context()); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Admin) storageDelete(w http.ResponseWriter, r *http.Request) {
	coll := domain.Collection(chi.URLParam(r, "collection"))
	if err := a.Storage.DeleteRecord(r.Context(), coll, chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
