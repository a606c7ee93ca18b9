package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/app"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/httpjson"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/validation"
)

type SettingsHandler struct {
	settings *app.SettingsService
	onPut    func(domain.Settings)
}

func NewSettingsHandler(settings *app.SettingsService, onPut func(domain.Settings)) *SettingsHandler {
	return &SettingsHandler{settings: settings, onPut: onPut}
}

func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/settings", h.get)
	r.Put("/settings", h.put)
	r.Delete("/settings", h.reset)
	// Variante avec slash final (utile selon reverse-proxy / clients).
	r.Get("/settings/", h.get)
	r.Put("/settings/", h.put)
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, s)
}

func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	var s domain.Settings
	if err := httpjson.Decode(r, &s); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	updated, err := h.settings.Put(r.Context(), s)
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			writeValidationError(w, err)
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.applied(updated)
	httpjson.Write(w, http.StatusOK, updated)
}

func (h *SettingsHandler) reset(w http.ResponseWriter, r *http.Request) {
	updated, err := h.settings.Reset(r.Context())
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.applied(updated)
	httpjson.Write(w, http.StatusOK, updated)
}

func (h *SettingsHandler) applied(s domain.Settings) {
	if h.onPut != nil {
		h.onPut(s)
	}
}
