package sqlrepo

import (
	"fmt"
	"strconv"
	"strings"

	"alquiler_floripa/internal/domain"
)

type Dialect int

const (
	MySQL Dialect = iota
	Postgres
)

// ParseDialect maps a REMOTE_DRIVER value to a Dialect and its database/sql driver name.
func ParseDialect(s string) (Dialect, string, error) {
	switch strings.ToLower(s) {
	case "mysql":
		return MySQL, "mysql", nil
	case "postgres", "postgresql", "pgx":
		return Postgres, "pgx", nil
	}
	return 0, "", fmt.Errorf("unknown SQL dialect %q", s)
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "mysql"
}

func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d Dialect) quote(ident string) string {
	if d == Postgres {
		return `"` + ident + `"`
	}
	return "`" + ident + "`"
}

// contains renders a case-insensitive substring match for column col against placeholder p.
func (d Dialect) contains(col, p string) string {
	if d == Postgres {
		return col + " ILIKE " + p
	}
	return "LOWER(" + col + ") LIKE LOWER(" + p + ")"
}

type kind int

const (
	kText kind = iota
	kInt
	kFloat
	kBool
	kList // JSON array of strings
	kTime
)

type column struct {
	name string
	kind kind
}

var timestamps = []column{{"created_at", kTime}, {"updated_at", kTime}}

// tables lists the columns of every relation, id first and timestamps last.
var tables = map[domain.Collection][]column{
	domain.Properties: withMeta(
		column{"titulo", kText}, column{"descripcion", kText}, column{"tipo", kText},
		column{"precio", kFloat}, column{"moneda", kText}, column{"periodo", kText},
		column{"direccion", kText}, column{"ciudad", kText}, column{"provincia", kText},
		column{"codigo_postal", kText}, column{"regiao", kText}, column{"barrio", kText},
		column{"habitaciones", kInt}, column{"banios", kInt}, column{"metros_cuadrados", kInt},
		column{"estadia_minima", kInt}, column{"distancia_praia", kInt},
		column{"imagenes", kList}, column{"caracteristicas", kList}, column{"disponible", kBool},
	),
	domain.Banners: withMeta(
		column{"titulo", kText}, column{"descripcion", kText}, column{"imagen_url", kText},
		column{"enlace", kText}, column{"orden", kInt}, column{"activo", kBool},
	),
	domain.Events: withMeta(
		column{"titulo", kText}, column{"descripcion", kText}, column{"fecha_inicio", kText},
		column{"fecha_fin", kText}, column{"hora_inicio", kText}, column{"hora_fin", kText},
		column{"localizacao", kText}, column{"cidade", kText}, column{"imagem", kText},
		column{"link_externo", kText}, column{"ativo", kBool},
	),
	domain.Neighborhoods: withMeta(
		column{"slug", kText}, column{"nombre", kText}, column{"descripcion", kText},
		column{"descripcion_seo", kText}, column{"keywords", kList}, column{"regiao", kText},
		column{"cover_image", kText}, column{"highlights", kList}, column{"activo", kBool},
		column{"orden", kInt},
	),
}

func withMeta(cols ...column) []column {
	out := make([]column, 0, len(cols)+3)
	out = append(out, column{"id", kText})
	out = append(out, cols...)
	return append(out, timestamps...)
}

const probeSQL = `SELECT id FROM banners LIMIT 1`
