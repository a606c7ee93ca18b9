package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
)

var ErrNotFound = ports.ErrNotFound

var (
	// ErrNoContent: même la passe relâchée n'a trouvé aucun candidat.
	ErrNoContent = errors.New("no content found")
	// ErrUnknownPool: (pays, type) non configuré.
	ErrUnknownPool = errors.New("unknown pool")
	// ErrRefreshInFlight: un rafraîchissement du même pool est déjà en cours (no-op).
	ErrRefreshInFlight = fmt.Errorf("refresh already in flight: %w", ports.ErrConflict)
	// ErrRefreshQueued: le pool attend déjà un worker.
	ErrRefreshQueued = fmt.Errorf("refresh already queued: %w", ports.ErrConflict)
	ErrQueueFull     = errors.New("refresh queue full")
)

// Codes propres au rafraîchissement. Les adapters fournissent les leurs
// (upstream_status, network_error, decode_error, circuit_open) via ErrorCode().
const (
	CodeCanceled = "canceled"
	CodeUpstream = "upstream_error"
	CodeEmpty    = "empty"
)

// CodedError porte un code d'erreur stable, persisté dans RefreshRun.ErrorCode.
// Le Refresher enveloppe chaque fin de passe anormale dans un CodedError.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CodedError) Unwrap() error { return e.Err }

func (e *CodedError) ErrorCode() string { return e.Code }

// ErrorCode extrait un code stable d'une erreur d'adapter (interface ErrorCode() string).
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		if c := coded.ErrorCode(); c != "" {
			return c
		}
	}
	return CodeUpstream
}
