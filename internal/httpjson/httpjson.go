// Package httpjson centralise les réponses JSON de l'API.
package httpjson

import (
	"net/http"

	json "github.com/goccy/go-json"
)

type ErrorBody struct {
	Error string `json:"error"`
	// Details est optionnel (ex: erreurs de validation par champ).
	Details map[string]string `json:"details,omitempty"`
}

func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	Write(w, status, ErrorBody{Error: msg})
}

func WriteErrorDetails(w http.ResponseWriter, status int, msg string, details map[string]string) {
	Write(w, status, ErrorBody{Error: msg, Details: details})
}

// Decode lit un corps JSON en refusant les champs inconnus.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
