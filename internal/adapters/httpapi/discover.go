package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/app"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/httpjson"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/validation"
)

const (
	visitorCookie = "roulette_uid"
	relaxedHeader = "X-Roulette-Relaxed"
)

type DiscoverHandler struct {
	picker *app.Picker
}

func NewDiscoverHandler(picker *app.Picker) *DiscoverHandler {
	return &DiscoverHandler{picker: picker}
}

type discoverQuery struct {
	Country   string `query:"country" validate:"required,len=2,alpha"`
	Type      string `query:"type" validate:"omitempty,oneof=any movie movies series show tv"`
	MinRating int    `query:"minRating" validate:"min=0,max=100"`
	UserID    string `query:"userId" validate:"omitempty,max=128"`

	excludeRecent *bool
}

func parseDiscoverQuery(r *http.Request) (discoverQuery, error) {
	v := r.URL.Query()
	q := discoverQuery{
		Country: domain.NormalizeCountry(v.Get("country")),
		Type:    strings.ToLower(strings.TrimSpace(v.Get("type"))),
		UserID:  strings.TrimSpace(v.Get("userId")),
	}

	fields := map[string]string{}
	if raw := strings.TrimSpace(v.Get("minRating")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields["minRating"] = "must be an integer"
		}
		q.MinRating = n
	}
	if raw := strings.TrimSpace(v.Get("excludeRecent")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			fields["excludeRecent"] = "must be a boolean"
		}
		q.excludeRecent = &b
	}
	if len(fields) > 0 {
		return q, &validation.Error{Fields: fields}
	}
	return q, validation.Struct(q)
}

func (h *DiscoverHandler) discover(w http.ResponseWriter, r *http.Request) {
	q, err := parseDiscoverQuery(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	contentType, err := domain.ParseContentType(q.Type)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := q.UserID
	if userID == "" {
		userID = visitorID(w, r)
	}

	res, err := h.picker.Discover(r.Context(), app.DiscoverRequest{
		Country:       q.Country,
		Type:          contentType,
		MinRating:     q.MinRating,
		ExcludeRecent: q.excludeRecent,
		UserID:        userID,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnknownPool):
			httpjson.WriteError(w, http.StatusNotFound, "unknown country")
		case errors.Is(err, app.ErrNoContent):
			httpjson.WriteError(w, http.StatusNotFound, app.ErrNoContent.Error())
		default:
			hlog.FromRequest(r).Error().Err(err).Msg("discover failed")
			httpjson.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if res.Relaxed {
		w.Header().Set(relaxedHeader, "true")
	}
	httpjson.Write(w, http.StatusOK, res.Title)
}

// visitorID renvoie l'identifiant anonyme du cookie, ou en émet un nouveau.
func visitorID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(visitorCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   365 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		httpjson.WriteErrorDetails(w, http.StatusBadRequest, "invalid request", verr.Fields)
		return
	}
	httpjson.WriteError(w, http.StatusBadRequest, err.Error())
}
