package streamapi

import (
	"strings"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
)

type searchResponse struct {
	Shows      []show `json:"shows"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor"`
}

type show struct {
	ID           string   `json:"id"`
	IMDbID       string   `json:"imdbId"`
	ShowType     string   `json:"showType"`
	Title        string   `json:"title"`
	Overview     string   `json:"overview"`
	ReleaseYear  int      `json:"releaseYear"`
	FirstAirYear int      `json:"firstAirYear"`
	LastAirYear  int      `json:"lastAirYear"`
	Rating       int      `json:"rating"`
	Runtime      int      `json:"runtime"`
	SeasonCount  int      `json:"seasonCount"`
	Genres       []genre  `json:"genres"`
	Cast         []string `json:"cast"`
	Directors    []string `json:"directors"`
	Creators     []string `json:"creators"`
	ImageSet     imageSet `json:"imageSet"`

	// Options de visionnage par pays (code ISO en minuscules).
	StreamingOptions map[string][]streamingOption `json:"streamingOptions"`
}

type genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// sizes: clés "w240", "w360", ..., "w1440" selon le type d'image.
type sizes map[string]string

type imageSet struct {
	VerticalPoster     sizes `json:"verticalPoster"`
	HorizontalPoster   sizes `json:"horizontalPoster"`
	HorizontalBackdrop sizes `json:"horizontalBackdrop"`
}

type streamingOption struct {
	Service struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"service"`
	Type string `json:"type"`
	Link string `json:"link"`
}

func (s sizes) first(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(s[k]); v != "" {
			return v
		}
	}
	return ""
}

// toTitle normalise un enregistrement upstream. Les champs manquants restent vides:
// c'est au rafraîchissement de rejeter les titres non affichables.
func (s show) toTitle(country, service string) domain.Title {
	t := domain.Title{
		ID:           s.ID,
		Title:        strings.TrimSpace(s.Title),
		Overview:     strings.TrimSpace(s.Overview),
		Type:         showType(s.ShowType),
		ReleaseYear:  s.ReleaseYear,
		FirstAirYear: s.FirstAirYear,
		LastAirYear:  s.LastAirYear,
		Rating:       clampRating(s.Rating),
		Genres:       make([]string, 0, len(s.Genres)),
		Cast:         s.Cast,
		Directors:    s.Directors,
		Creators:     s.Creators,
		Runtime:      s.Runtime,
		SeasonCount:  s.SeasonCount,
		Images: domain.ImageSet{
			Poster:      s.ImageSet.VerticalPoster.first("w480", "w360", "w600", "w240", "w720"),
			PosterLarge: s.ImageSet.VerticalPoster.first("w720", "w600"),
			Backdrop:    s.ImageSet.HorizontalBackdrop.first("w1080", "w720", "w1440", "w360"),
		},
	}
	if t.ID == "" {
		t.ID = s.IMDbID
	}
	for _, g := range s.Genres {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			name = g.ID
		}
		if name != "" {
			t.Genres = append(t.Genres, name)
		}
	}
	t.Link, t.Service = deepLink(s.StreamingOptions[strings.ToLower(country)], service)
	return t
}

// deepLink choisit le lien du service demandé, en préférant l'offre "subscription".
func deepLink(options []streamingOption, service string) (link, name string) {
	for _, o := range options {
		if service != "" && !strings.EqualFold(o.Service.ID, service) {
			continue
		}
		if o.Link == "" {
			continue
		}
		if o.Type == "subscription" {
			return o.Link, o.Service.ID
		}
		if link == "" {
			link, name = o.Link, o.Service.ID
		}
	}
	return link, name
}

func showType(raw string) domain.ContentType {
	if strings.EqualFold(raw, "series") {
		return domain.ContentSeries
	}
	return domain.ContentMovie
}

func clampRating(r int) int {
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	default:
		return r
	}
}
