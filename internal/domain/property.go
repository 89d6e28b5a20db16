package domain

import "time"

type Property struct {
	ID            string    `json:"id"`
	Title         string    `json:"titulo"`
	Description   string    `json:"descripcion"`
	Type          string    `json:"tipo"`
	Price         float64   `json:"precio"`
	Currency      string    `json:"moneda"`
	Period        string    `json:"periodo"`
	Address       string    `json:"direccion"`
	City          string    `json:"ciudad"`
	State         string    `json:"provincia"`
	PostalCode    *string   `json:"codigo_postal"`
	Region        *string   `json:"regiao"`
	Neighborhood  *string   `json:"barrio"`
	Rooms         *int      `json:"habitaciones"`
	Bathrooms     *int      `json:"banios"`
	AreaM2        *int      `json:"metros_cuadrados"`
	MinStay       *int      `json:"estadia_minima"`
	BeachDistance *int      `json:"distancia_praia"`
	Images        []string  `json:"imagenes"`
	Features      []string  `json:"caracteristicas"`
	Available     bool      `json:"disponible"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p Property) Key() string        { return p.ID }
func (p Property) Created() time.Time { return p.CreatedAt }

// MaxPropertyImages bounds the image list of a single property.
const MaxPropertyImages = 10
