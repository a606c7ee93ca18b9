package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/app"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/httpjson"
)

type RefreshRunsHandler struct {
	runs *app.RefreshRunService
}

func NewRefreshRunsHandler(runs *app.RefreshRunService) *RefreshRunsHandler {
	return &RefreshRunsHandler{runs: runs}
}

func (h *RefreshRunsHandler) Routes(r chi.Router) {
	r.Route("/refresh-runs", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
}

func (h *RefreshRunsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, runs)
}

func (h *RefreshRunsHandler) get(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, run)
}
