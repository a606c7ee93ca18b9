package domain

import (
	"errors"
	"time"
)

type RefreshState string

const (
	RefreshRunning   RefreshState = "running"
	RefreshCompleted RefreshState = "completed"
	// RefreshPartial: erreur upstream en cours de passe, titres déjà collectés conservés.
	RefreshPartial RefreshState = "partial"
	// RefreshEmpty: aucun titre valide, le pool existant est laissé intact.
	RefreshEmpty  RefreshState = "empty"
	RefreshFailed RefreshState = "failed"
)

func (s RefreshState) IsTerminal() bool {
	return s == RefreshCompleted || s == RefreshPartial || s == RefreshEmpty || s == RefreshFailed
}

// RefreshRun trace une passe de rafraîchissement d'un pool.
type RefreshRun struct {
	ID      string
	Country string
	Type    ContentType
	State   RefreshState

	Pages   int
	Fetched int
	Kept    int

	ErrorCode    string
	ErrorMessage string

	StartedAt  time.Time
	FinishedAt time.Time
}

func (r RefreshRun) Key() PoolKey {
	return PoolKey{Country: r.Country, Type: r.Type}
}

var ErrInvalidTransition = errors.New("invalid refresh state transition")

func CanTransition(from, to RefreshState) bool {
	if from == to {
		return true
	}
	switch from {
	case RefreshRunning:
		return to.IsTerminal()
	default:
		return false
	}
}
