package streamapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
)

const samplePage = `{
  "shows": [
    {
      "itemType": "show",
      "showType": "movie",
      "id": "82",
      "imdbId": "tt0245429",
      "title": "Spirited Away",
      "overview": "A girl wanders into a world of spirits.",
      "releaseYear": 2001,
      "genres": [{"id": "animation", "name": "Animation"}, {"id": "family", "name": ""}],
      "directors": ["Hayao Miyazaki"],
      "rating": 86,
      "runtime": 125,
      "imageSet": {
        "verticalPoster": {"w240": "https://img/v240.jpg", "w480": "https://img/v480.jpg", "w720": "https://img/v720.jpg"},
        "horizontalBackdrop": {"w1080": "https://img/b1080.jpg"}
      },
      "streamingOptions": {
        "us": [
          {"service": {"id": "netflix"}, "type": "addon", "link": "https://www.netflix.com/addon/82"},
          {"service": {"id": "netflix"}, "type": "subscription", "link": "https://www.netflix.com/title/60023642"},
          {"service": {"id": "prime"}, "type": "subscription", "link": "https://www.primevideo.com/x"}
        ]
      }
    },
    {
      "showType": "series",
      "id": "93",
      "title": "Dark",
      "overview": "",
      "rating": 140,
      "seasonCount": 3,
      "imageSet": {"verticalPoster": {"w360": "https://img/d360.jpg"}},
      "streamingOptions": {"de": [{"service": {"id": "netflix"}, "type": "subscription", "link": "https://www.netflix.com/title/80100172"}]}
    }
  ],
  "hasMore": true,
  "nextCursor": "82:spirited"
}`

func TestClient_SearchSendsQueryAndParsesPage(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	c := New(zerolog.Nop(), Options{BaseURL: srv.URL + "/", APIKey: "secret", APIHost: "streaming.example", OutputLanguage: "en"})
	page, err := c.Search(context.Background(), ports.CatalogQuery{
		Country: "us", Type: domain.ContentMovie, Service: "netflix",
		OrderBy: "popularity_1year", OrderDirection: "desc", Cursor: "abc",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got.URL.Path != "/shows/search/filters" {
		t.Fatalf("path: %s", got.URL.Path)
	}
	q := got.URL.Query()
	want := map[string]string{
		"country": "us", "catalogs": "netflix", "show_type": "movie", "order_by": "popularity_1year",
		"order_direction": "desc", "cursor": "abc", "output_language": "en",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Fatalf("query %s: want %q, got %q", k, v, q.Get(k))
		}
	}
	if got.Header.Get("X-RapidAPI-Key") != "secret" || got.Header.Get("X-RapidAPI-Host") != "streaming.example" {
		t.Fatalf("missing api headers: %v", got.Header)
	}

	if !page.HasMore || page.NextCursor != "82:spirited" || len(page.Titles) != 2 {
		t.Fatalf("unexpected page: more=%v cursor=%q titles=%d", page.HasMore, page.NextCursor, len(page.Titles))
	}

	m := page.Titles[0]
	if m.ID != "82" || m.Type != domain.ContentMovie || m.Rating != 86 || m.Runtime != 125 {
		t.Fatalf("unexpected movie: %+v", m)
	}
	if m.Link != "https://www.netflix.com/title/60023642" || m.Service != "netflix" {
		t.Fatalf("want subscription deep link, got %q (%s)", m.Link, m.Service)
	}
	if m.Images.Poster != "https://img/v480.jpg" || m.Images.PosterLarge != "https://img/v720.jpg" || m.Images.Backdrop != "https://img/b1080.jpg" {
		t.Fatalf("unexpected images: %+v", m.Images)
	}
	if len(m.Genres) != 2 || m.Genres[0] != "Animation" || m.Genres[1] != "family" {
		t.Fatalf("unexpected genres: %v", m.Genres)
	}
	if !m.MeetsQuality() {
		t.Fatalf("movie should be displayable")
	}

	// Série sans synopsis ni lien pour "us": normalisée mais non affichable.
	s := page.Titles[1]
	if s.Type != domain.ContentSeries || s.Rating != 100 || s.SeasonCount != 3 || s.Link != "" {
		t.Fatalf("unexpected series: %+v", s)
	}
	if s.IsDisplayable() {
		t.Fatalf("series without overview/link must not be displayable")
	}
}

func TestClient_SearchOmitsOptionalParams(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"shows":[],"hasMore":false}`))
	}))
	defer srv.Close()

	c := New(zerolog.Nop(), Options{BaseURL: srv.URL})
	page, err := c.Search(context.Background(), ports.CatalogQuery{Country: "fr", Type: domain.ContentAny})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rawQuery != "country=fr" {
		t.Fatalf("want only country, got %q", rawQuery)
	}
	if page.HasMore || len(page.Titles) != 0 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestClient_SearchErrors(t *testing.T) {
	status := http.StatusInternalServerError
	body := `{"message":"boom"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	c := New(zerolog.Nop(), Options{BaseURL: srv.URL})
	q := ports.CatalogQuery{Country: "us", Type: domain.ContentMovie}

	_, err := c.Search(context.Background(), q)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 500 || !se.Temporary() {
		t.Fatalf("want temporary *StatusError 500, got %v", err)
	}
	if se.ErrorCode() != CodeStatus {
		t.Fatalf("code: want %s, got %s", CodeStatus, se.ErrorCode())
	}

	status, body = http.StatusOK, `{"shows": [`
	_, err = c.Search(context.Background(), q)
	var ae *Error
	if !errors.As(err, &ae) || ae.Code != CodeDecode {
		t.Fatalf("want decode error, got %v", err)
	}

	srv.Close()
	_, err = c.Search(context.Background(), q)
	if !errors.As(err, &ae) || ae.Code != CodeNetwork {
		t.Fatalf("want network error, got %v", err)
	}
}

func TestClient_RateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"shows":[]}`))
	}))
	defer srv.Close()

	c := New(zerolog.Nop(), Options{BaseURL: srv.URL, RequestsPerSecond: 0.01, Burst: 1})
	q := ports.CatalogQuery{Country: "us"}
	if _, err := c.Search(context.Background(), q); err != nil {
		t.Fatalf("first Search: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Search(ctx, q); err == nil {
		t.Fatalf("second Search should be paced and hit the deadline")
	}
}
