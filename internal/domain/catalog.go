package domain

var (
	PropertyTypes = []string{"casa", "departamento", "local", "oficina", "terreno"}
	Currencies    = []string{"USD", "BRL"}
	Periods       = []string{"diaria", "mensal"}
	Regions       = []string{"sul_da_ilha", "norte_da_ilha", "centro", "continente"}

	NeighborhoodSlugs = []string{
		"canasvieiras",
		"jurere_internacional",
		"ingleses",
		"campeche",
		"barra_da_lagoa",
		"lagoa_da_conceicao",
		"ponta_das_canas",
	}
)

const (
	DefaultCurrency = "USD"
	DefaultPeriod   = "mensal"
)

// Zones groups city names matched by the coarse "zona" listing filter.
var Zones = map[string][]string{
	"norte": {"Jurerê", "Canasvieiras", "Ingleses", "Santinho", "Praia Brava", "Daniela", "Lagoinha"},
	"sul":   {"Campeche", "Armação", "Pântano do Sul", "Ribeirão da Ilha", "Lagoa", "Barra da Lagoa"},
}

var RegionNames = map[string]string{
	"norte_da_ilha": "Norte de la Isla",
	"sul_da_ilha":   "Sur de la Isla",
	"centro":        "Centro",
	"continente":    "Continente",
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func IsRegion(v string) bool           { return oneOf(v, Regions) }
func IsNeighborhoodSlug(v string) bool { return oneOf(v, NeighborhoodSlugs) }
