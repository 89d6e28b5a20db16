package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// formReader coerces loosely typed form input (strings from HTML forms, or JSON values)
// into typed Fields. Only known keys are copied; identity and timestamps never are.
type formReader struct {
	in     map[string]any
	out    Fields
	verr   *ValidationError
	create bool
}

func newFormReader(in map[string]any, create bool) *formReader {
	return &formReader{in: in, out: Fields{}, verr: &ValidationError{}, create: create}
}

// done returns the fields that coerced cleanly even when others failed, so callers can
// add their own checks to the same ValidationError.
func (r *formReader) done() (Fields, error) {
	return r.out, r.verr.OrNil()
}

// scalar returns the single value submitted for k, unwrapping one-element lists.
func (r *formReader) scalar(k string) (any, bool) {
	v, ok := r.in[k]
	if !ok {
		return nil, false
	}
	switch l := v.(type) {
	case []string:
		if len(l) == 0 {
			return nil, true
		}
		return l[0], true
	case []any:
		if len(l) == 0 {
			return nil, true
		}
		return l[0], true
	}
	return v, true
}

// str reports the trimmed textual form of k and whether it was submitted.
func (r *formReader) str(k string) (string, bool) {
	v, ok := r.scalar(k)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(asString(v)), true
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	return fmt.Sprint(v)
}

func (r *formReader) text(k string) {
	if s, ok := r.str(k); ok {
		r.out[k] = s
	}
}

func (r *formReader) optText(k string) {
	s, ok := r.str(k)
	switch {
	case ok && s != "":
		r.out[k] = s
	case ok || r.create:
		r.out[k] = nil
	}
}

func (r *formReader) textDefault(k, def string) {
	s, ok := r.str(k)
	switch {
	case ok && s != "":
		r.out[k] = s
	case ok || r.create:
		r.out[k] = def
	}
}

func (r *formReader) number(k string) {
	s, ok := r.str(k)
	if !ok || s == "" {
		if ok {
			r.out[k] = nil
		}
		return
	}
	if !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		r.verr.Add(k, "debe ser un número válido")
		return
	}
	r.out[k] = f
}

func parseInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func (r *formReader) optInt(k string) {
	s, ok := r.str(k)
	if !ok || s == "" {
		if ok || r.create {
			r.out[k] = nil
		}
		return
	}
	n, err := parseInt(s)
	if err != nil || n < 0 {
		r.verr.Add(k, "debe ser un número entero")
		return
	}
	r.out[k] = n
}

func (r *formReader) intDefault(k string, def int) {
	s, ok := r.str(k)
	if !ok && !r.create {
		return
	}
	n, err := parseInt(s)
	if err != nil {
		n = def
	}
	r.out[k] = n
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "on", "1", "yes", "si", "sí":
		return true, true
	case "false", "off", "0", "no":
		return false, true
	}
	return false, false
}

func (r *formReader) boolean(k string, def bool) {
	v, ok := r.scalar(k)
	if !ok {
		if r.create {
			r.out[k] = def
		}
		return
	}
	if b, isBool := v.(bool); isBool {
		r.out[k] = b
		return
	}
	s := strings.TrimSpace(asString(v))
	if s == "" {
		r.out[k] = def
		return
	}
	b, valid := parseBool(s)
	if !valid {
		r.verr.Add(k, "debe ser verdadero o falso")
		return
	}
	r.out[k] = b
}

// enum copies k when it is one of allowed. Blank input takes def, or stays blank for the
// required-field check when def is empty.
func (r *formReader) enum(k string, allowed []string, def string) {
	s, ok := r.str(k)
	switch {
	case ok && s != "":
		if !oneOf(s, allowed) {
			r.verr.Add(k, "valor no permitido: "+s)
			return
		}
		r.out[k] = s
	case def != "" && (ok || r.create):
		r.out[k] = def
	case ok:
		r.out[k] = ""
	}
}

func (r *formReader) optEnum(k string, allowed []string) {
	s, ok := r.str(k)
	switch {
	case ok && s != "":
		if !oneOf(s, allowed) {
			r.verr.Add(k, "valor no permitido: "+s)
			return
		}
		r.out[k] = s
	case ok || r.create:
		r.out[k] = nil
	}
}

func (r *formReader) list(k string, max int) {
	v, ok := r.in[k]
	if !ok {
		if r.create {
			r.out[k] = []string{}
		}
		return
	}
	var raw []string
	switch l := v.(type) {
	case nil:
	case []string:
		raw = l
	case []any:
		for _, x := range l {
			raw = append(raw, asString(x))
		}
	default:
		raw = []string{asString(v)}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if max > 0 && len(out) > max {
		r.verr.Add(k, fmt.Sprintf("máximo de %d elementos", max))
		return
	}
	r.out[k] = out
}

func (r *formReader) date(k string, optional bool) {
	if optional {
		r.optText(k)
	} else {
		r.text(k)
	}
	s, _ := r.out[k].(string)
	if s == "" {
		return
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		r.verr.Add(k, "fecha inválida, use AAAA-MM-DD")
	}
}

// NormalizeProperty coerces submitted property data. Defaults apply on create only.
func NormalizeProperty(in map[string]any, create bool) (Fields, error) {
	r := newFormReader(in, create)
	r.text("titulo")
	r.text("descripcion")
	r.enum("tipo", PropertyTypes, "")
	r.number("precio")
	r.enum("moneda", Currencies, DefaultCurrency)
	r.enum("periodo", Periods, DefaultPeriod)
	r.text("direccion")
	r.text("ciudad")
	r.text("provincia")
	r.optText("codigo_postal")
	r.optEnum("regiao", Regions)
	r.optEnum("barrio", NeighborhoodSlugs)
	for _, k := range []string{"habitaciones", "banios", "metros_cuadrados", "estadia_minima", "distancia_praia"} {
		r.optInt(k)
	}
	r.list("imagenes", MaxPropertyImages)
	r.list("caracteristicas", 0)
	r.boolean("disponible", true)
	return r.done()
}

func NormalizeBanner(in map[string]any, create bool) (Fields, error) {
	r := newFormReader(in, create)
	r.optText("titulo")
	r.optText("descripcion")
	r.text("imagen_url")
	r.optText("enlace")
	r.intDefault("orden", 0)
	r.boolean("activo", true)
	return r.done()
}

func NormalizeEvent(in map[string]any, create bool) (Fields, error) {
	r := newFormReader(in, create)
	r.text("titulo")
	r.text("descripcion")
	r.date("fecha_inicio", false)
	r.date("fecha_fin", true)
	r.optText("hora_inicio")
	r.optText("hora_fin")
	r.text("localizacao")
	r.textDefault("cidade", DefaultEventCity)
	r.optText("imagem")
	r.optText("link_externo")
	r.boolean("ativo", true)
	return r.done()
}

func NormalizeNeighborhood(in map[string]any, create bool) (Fields, error) {
	r := newFormReader(in, create)
	if s, ok := r.str("slug"); ok {
		r.out["slug"] = NormalizeSlug(s)
	}
	r.text("nombre")
	r.text("descripcion")
	r.text("descripcion_seo")
	r.enum("regiao", Regions, "")
	r.text("cover_image")
	r.list("keywords", 0)
	r.list("highlights", 0)
	r.boolean("activo", true)
	r.intDefault("orden", 0)
	return r.done()
}
