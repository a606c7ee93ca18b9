package domain

import (
	"errors"
	"strings"
)

type ContentType string

const (
	ContentMovie  ContentType = "movie"
	ContentSeries ContentType = "series"
	// ContentAny n'est jamais une clé de pool: c'est l'union movie+series à la lecture.
	ContentAny ContentType = "any"
)

// PoolTypes liste les types qui possèdent un pool dédié.
var PoolTypes = []ContentType{ContentMovie, ContentSeries}

var ErrInvalidContentType = errors.New("invalid content type")

func ParseContentType(raw string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ContentAny:
		return ContentAny, nil
	case ContentMovie, "movies":
		return ContentMovie, nil
	case ContentSeries, "show", "tv":
		return ContentSeries, nil
	default:
		return "", ErrInvalidContentType
	}
}

type ImageSet struct {
	Poster      string `json:"poster"`
	PosterLarge string `json:"posterLarge,omitempty"`
	Backdrop    string `json:"backdrop,omitempty"`
}

// Title est immuable une fois normalisé par le fetcher.
type Title struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Overview string      `json:"overview"`
	Type     ContentType `json:"type"`

	ReleaseYear  int `json:"releaseYear,omitempty"`
	FirstAirYear int `json:"firstAirYear,omitempty"`
	LastAirYear  int `json:"lastAirYear,omitempty"`

	// Rating est sur 0..100.
	Rating int      `json:"rating"`
	Genres []string `json:"genres"`

	Cast      []string `json:"cast,omitempty"`
	Directors []string `json:"directors,omitempty"`
	Creators  []string `json:"creators,omitempty"`

	Images ImageSet `json:"images"`

	// Lien profond vers le service de streaming (peut manquer côté upstream).
	Link    string `json:"link,omitempty"`
	Service string `json:"service,omitempty"`

	Runtime     int `json:"runtime,omitempty"`
	SeasonCount int `json:"seasonCount,omitempty"`
}

// IsDisplayable: champs minimum pour qu'une carte soit affichable
// (titre, synopsis, lien, poster).
func (t Title) IsDisplayable() bool {
	return strings.TrimSpace(t.Title) != "" &&
		strings.TrimSpace(t.Overview) != "" &&
		strings.TrimSpace(t.Link) != "" &&
		strings.TrimSpace(t.Images.Poster) != ""
}

// MeetsQuality ajoute l'exigence d'une note strictement positive.
func (t Title) MeetsQuality() bool {
	return t.IsDisplayable() && t.Rating > 0
}
