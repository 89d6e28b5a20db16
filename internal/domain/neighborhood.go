package domain

import "time"

type Neighborhood struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"nombre"`
	Description    string    `json:"descripcion"`
	SEODescription string    `json:"descripcion_seo"`
	Keywords       []string  `json:"keywords"`
	Region         string    `json:"regiao"`
	CoverImage     string    `json:"cover_image"`
	Highlights     []string  `json:"highlights"`
	Active         bool      `json:"activo"`
	Order          int       `json:"orden"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (n Neighborhood) Key() string        { return n.ID }
func (n Neighborhood) Created() time.Time { return n.CreatedAt }
