package domain

// Settings regroupe les réglages modifiables à chaud (persistés en base).
type Settings struct {
	// Poids plancher du tirage pondéré: une note basse ne rend jamais un titre impossible.
	MinWeight int `json:"minWeight" validate:"min=1,max=100"`

	// Taille de l'historique récent par utilisateur.
	MaxRecentPicks int `json:"maxRecentPicks" validate:"min=1,max=50"`

	// Nombre de workers de rafraîchissement (concurrence côté upstream).
	RefreshWorkers int `json:"refreshWorkers" validate:"min=1,max=16"`

	// Valeur par défaut de excludeRecent quand le client ne la précise pas.
	DefaultExcludeRecent bool `json:"defaultExcludeRecent"`
}

func DefaultSettings() Settings {
	return Settings{
		MinWeight:            30,
		MaxRecentPicks:       15,
		RefreshWorkers:       2,
		DefaultExcludeRecent: true,
	}
}
