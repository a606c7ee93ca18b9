package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/app"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/httpjson"
)

type PoolsHandler struct {
	pools     *app.PoolStore
	queue     *app.RefreshQueue
	refresher *app.Refresher
	scheduler *app.RefreshScheduler
	health    *app.HealthService
}

func NewPoolsHandler(deps Deps) *PoolsHandler {
	h := &PoolsHandler{
		pools:     deps.Pools,
		queue:     deps.Queue,
		refresher: deps.Refresher,
		scheduler: deps.Scheduler,
		health:    deps.Health,
	}
	if h.health == nil {
		h.health = app.NewHealthService(deps.Pools, deps.Refresher, deps.Queue)
	}
	return h
}

func (h *PoolsHandler) Routes(r chi.Router) {
	r.Route("/pools", func(r chi.Router) {
		r.Get("/", h.list)
		if h.queue != nil {
			r.Post("/refresh", h.refreshAll)
			r.Post("/{country}/{type}/refresh", h.refresh)
		}
	})
}

func (h *PoolsHandler) list(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, h.health.Pools())
}

type refreshAccepted struct {
	Pool   string `json:"pool,omitempty"`
	Status string `json:"status"`
	Queued int    `json:"queued"`
}

func (h *PoolsHandler) refresh(w http.ResponseWriter, r *http.Request) {
	country := domain.NormalizeCountry(chi.URLParam(r, "country"))
	t, err := domain.ParseContentType(chi.URLParam(r, "type"))
	if err != nil || t == domain.ContentAny {
		httpjson.WriteError(w, http.StatusBadRequest, "type must be movie or series")
		return
	}
	key := domain.NewPoolKey(country, t)
	if !h.pools.Has(key) {
		httpjson.WriteError(w, http.StatusNotFound, app.ErrUnknownPool.Error())
		return
	}
	if h.refresher != nil && h.refresher.InFlight(key) {
		httpjson.WriteError(w, http.StatusConflict, app.ErrRefreshInFlight.Error())
		return
	}

	switch err := h.queue.Enqueue(key); {
	case err == nil:
		httpjson.Write(w, http.StatusAccepted, refreshAccepted{Pool: key.String(), Status: "queued", Queued: 1})
	case errors.Is(err, app.ErrRefreshQueued):
		httpjson.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrQueueFull):
		httpjson.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *PoolsHandler) refreshAll(w http.ResponseWriter, r *http.Request) {
	n := 0
	if h.scheduler != nil {
		n = h.scheduler.RefreshAll()
	} else {
		for _, key := range h.pools.Keys() {
			if h.queue.Enqueue(key) == nil {
				n++
			}
		}
	}
	httpjson.Write(w, http.StatusAccepted, refreshAccepted{Status: "queued", Queued: n})
}
