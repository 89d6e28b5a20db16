package domain

import "time"

// DefaultEventCity is used when an event is submitted without a city.
const DefaultEventCity = "Florianópolis"

type Event struct {
	ID           string    `json:"id"`
	Title        string    `json:"titulo"`
	Description  string    `json:"descripcion"`
	StartDate    string    `json:"fecha_inicio"` // YYYY-MM-DD
	EndDate      *string   `json:"fecha_fin"`
	StartTime    *string   `json:"hora_inicio"`
	EndTime      *string   `json:"hora_fin"`
	Location     string    `json:"localizacao"`
	City         string    `json:"cidade"`
	Image        *string   `json:"imagem"`
	ExternalLink *string   `json:"link_externo"`
	Active       bool      `json:"ativo"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (e Event) Key() string        { return e.ID }
func (e Event) Created() time.Time { return e.CreatedAt }
