package domain

import "time"

type Banner struct {
	ID          string    `json:"id"`
	Title       *string   `json:"titulo,omitempty"`
	Description *string   `json:"descripcion,omitempty"`
	ImageURL    string    `json:"imagen_url"`
	Link        *string   `json:"enlace,omitempty"`
	Order       int       `json:"orden"`
	Active      bool      `json:"activo"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (b Banner) Key() string        { return b.ID }
func (b Banner) Created() time.Time { return b.CreatedAt }
