package domain

import (
	"errors"
	"strings"
	"time"
)

type Collection string

const (
	Properties    Collection = "propiedades"
	Banners       Collection = "banners"
	Events        Collection = "eventos"
	Neighborhoods Collection = "barrios"
)

// LocalIDPrefix marks records created by the local mirror instead of the remote store.
const LocalIDPrefix = "local-"

func IsLocalID(id string) bool { return strings.HasPrefix(id, LocalIDPrefix) }

// Record is implemented by every persisted entity.
type Record interface {
	Key() string
	Created() time.Time
}

// Fields is a partial record keyed by JSON column name.
type Fields map[string]any

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Without returns a copy of f minus the given keys.
func (f Fields) Without(keys ...string) Fields {
	out := f.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Schema bundles the per-entity rules shared by the mirror, the coordinator and the adapters.
type Schema struct {
	Collection Collection
	Label      string
	MirrorKey  string
	Normalize  func(in map[string]any, create bool) (Fields, error)
	Required   []string
	Immutable  []string
	PruneOnCap bool
}

var (
	PropertySchema = Schema{
		Collection: Properties,
		Label:      "propiedad",
		MirrorKey:  "aluguel_propriedades",
		Normalize:  NormalizeProperty,
		Required:   []string{"titulo", "descripcion", "tipo", "precio", "direccion", "ciudad", "provincia"},
		PruneOnCap: true,
	}
	BannerSchema = Schema{
		Collection: Banners,
		Label:      "banner",
		MirrorKey:  "aluguel_banners",
		Normalize:  NormalizeBanner,
		Required:   []string{"imagen_url"},
	}
	EventSchema = Schema{
		Collection: Events,
		Label:      "evento",
		MirrorKey:  "aluguel_eventos",
		Normalize:  NormalizeEvent,
		Required:   []string{"titulo", "descripcion", "fecha_inicio", "localizacao"},
	}
	NeighborhoodSchema = Schema{
		Collection: Neighborhoods,
		Label:      "barrio",
		Normalize:  NormalizeNeighborhood,
		Required:   []string{"slug", "nombre", "descripcion", "descripcion_seo", "regiao", "cover_image"},
		Immutable:  []string{"slug"},
	}
)

// CheckRequired reports every required key that is absent, nil or blank.
func CheckRequired(f Fields, keys []string) error {
	verr := &ValidationError{}
	for _, k := range keys {
		v, ok := f[k]
		if !ok || v == nil {
			verr.Add(k, "es obligatorio")
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			verr.Add(k, "es obligatorio")
		}
	}
	return verr.OrNil()
}

// JoinValidation merges the field messages of several validation errors into one, keeping
// the first message per field. Any other error is returned unchanged.
func JoinValidation(errs ...error) error {
	out := &ValidationError{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		for k, msg := range verr.Fields {
			out.Add(k, msg)
		}
	}
	return out.OrNil()
}
