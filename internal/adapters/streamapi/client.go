// Package streamapi implémente ports.Catalog sur l'API Streaming Availability (RapidAPI).
package streamapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/metrics"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
)

const searchPath = "/shows/search/filters"

type Options struct {
	BaseURL        string
	APIKey         string
	APIHost        string
	OutputLanguage string
	Timeout        time.Duration
	// RequestsPerSecond <= 0 désactive le lissage des appels.
	RequestsPerSecond float64
	Burst             int
}

// Client appelle l'endpoint de recherche filtrée, une page par appel.
type Client struct {
	logger  zerolog.Logger
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
}

func New(logger zerolog.Logger, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if opts.APIHost == "" {
		if u, err := url.Parse(opts.BaseURL); err == nil {
			opts.APIHost = u.Host
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		logger:  logger,
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
	}
}

// WithHTTPClient remplace le client HTTP (tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.http = hc
	}
	return c
}

func (c *Client) Search(ctx context.Context, q ports.CatalogQuery) (ports.CatalogPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ports.CatalogPage{}, err
	}

	endpoint := c.opts.BaseURL + searchPath + "?" + c.params(q).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.CatalogPage{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "watch-roulette")
	if c.opts.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.opts.APIKey)
	}
	if c.opts.APIHost != "" {
		req.Header.Set("X-RapidAPI-Host", c.opts.APIHost)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return ports.CatalogPage{}, ctx.Err()
		}
		metrics.UpstreamRequests.WithLabelValues("network_error").Inc()
		return ports.CatalogPage{}, &Error{Code: CodeNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues("http_error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ports.CatalogPage{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var raw searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		metrics.UpstreamRequests.WithLabelValues("decode_error").Inc()
		return ports.CatalogPage{}, &Error{Code: CodeDecode, Err: err}
	}
	metrics.UpstreamRequests.WithLabelValues("ok").Inc()

	page := ports.CatalogPage{
		Titles:     make([]domain.Title, 0, len(raw.Shows)),
		HasMore:    raw.HasMore,
		NextCursor: raw.NextCursor,
	}
	for _, s := range raw.Shows {
		page.Titles = append(page.Titles, s.toTitle(q.Country, q.Service))
	}
	c.logger.Debug().
		Str("country", q.Country).
		Str("type", string(q.Type)).
		Int("shows", len(raw.Shows)).
		Bool("has_more", raw.HasMore).
		Msg("catalog page fetched")
	return page, nil
}

func (c *Client) params(q ports.CatalogQuery) url.Values {
	v := url.Values{}
	v.Set("country", q.Country)
	if q.Service != "" {
		v.Set("catalogs", q.Service)
	}
	if q.Type == domain.ContentMovie || q.Type == domain.ContentSeries {
		v.Set("show_type", string(q.Type))
	}
	if q.OrderBy != "" {
		v.Set("order_by", q.OrderBy)
	}
	if q.OrderDirection != "" {
		v.Set("order_direction", q.OrderDirection)
	}
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	if c.opts.OutputLanguage != "" {
		v.Set("output_language", c.opts.OutputLanguage)
	}
	return v
}

// Codes d'erreur repris tels quels dans RefreshRun.ErrorCode.
const (
	CodeStatus      = "upstream_status"
	CodeNetwork     = "network_error"
	CodeDecode      = "decode_error"
	CodeCircuitOpen = "circuit_open"
)

type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string     { return "streamapi: " + e.Code + ": " + e.Err.Error() }
func (e *Error) Unwrap() error     { return e.Err }
func (e *Error) ErrorCode() string { return e.Code }

// StatusError: réponse non-2xx de l'API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("streamapi: http %d", e.StatusCode)
	}
	return fmt.Sprintf("streamapi: http %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) ErrorCode() string { return CodeStatus }

// Temporary: 429 et 5xx sont des pannes côté API; les autres 4xx viennent de la requête.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func isUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
