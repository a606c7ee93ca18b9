package ports

import "errors"

var ErrNotFound = errors.New("not found")

// ErrConflict: l'opération entre en collision avec un traitement déjà en cours
// (ex: rafraîchissement d'un pool déjà en vol ou déjà en file).
var ErrConflict = errors.New("conflict")
