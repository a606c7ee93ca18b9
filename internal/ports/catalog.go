package ports

import (
	"context"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
)

// CatalogQuery décrit une page de recherche upstream.
type CatalogQuery struct {
	Country        string
	Type           domain.ContentType
	Service        string
	OrderBy        string
	OrderDirection string
	// Cursor opaque renvoyé par la page précédente ("" pour la première).
	Cursor string
}

type CatalogPage struct {
	Titles     []domain.Title
	HasMore    bool
	NextCursor string
}

// Catalog est l'API de disponibilité de contenus (collaborateur opaque).
// Toute réponse non-2xx est une erreur pour la page demandée.
type Catalog interface {
	Search(ctx context.Context, q CatalogQuery) (CatalogPage, error)
}
