package app

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/metrics"
)

// PickHistory garde, par utilisateur, les derniers titres tirés (plus récent en tête).
// Le nombre d'utilisateurs est borné par un LRU: on oublie ceux qui n'ont pas tiré depuis le plus longtemps.
type PickHistory struct {
	mu    sync.Mutex
	users *lru.Cache[string, []string]
	max   int
}

func NewPickHistory(maxUsers, maxRecent int) *PickHistory {
	if maxUsers <= 0 {
		maxUsers = 10000
	}
	if maxRecent <= 0 {
		maxRecent = 15
	}
	cache, err := lru.New[string, []string](maxUsers)
	if err != nil {
		// lru.New n'échoue que pour une taille <= 0.
		panic(err)
	}
	return &PickHistory{users: cache, max: maxRecent}
}

// Recent renvoie une copie des IDs récents de l'utilisateur, sans toucher à l'ordre LRU.
func (h *PickHistory) Recent(userID string) []string {
	if userID == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	ids, ok := h.users.Peek(userID)
	if !ok {
		return nil
	}
	if len(ids) > h.max {
		ids = ids[:h.max]
	}
	return append([]string(nil), ids...)
}

// Record ajoute titleID en tête de l'historique de userID puis tronque au maximum.
func (h *PickHistory) Record(userID, titleID string) {
	if userID == "" || titleID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, _ := h.users.Peek(userID)
	next := make([]string, 0, h.max)
	next = append(next, titleID)
	for _, id := range prev {
		if len(next) >= h.max {
			break
		}
		if id != titleID {
			next = append(next, id)
		}
	}
	h.users.Add(userID, next)
	metrics.HistoryUsers.Set(float64(h.users.Len()))
}

// SetMax change la taille de l'historique; les listes trop longues sont raccourcies au prochain Record.
func (h *PickHistory) SetMax(n int) {
	if n <= 0 {
		return
	}
	h.mu.Lock()
	h.max = n
	h.mu.Unlock()
}

func (h *PickHistory) Max() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.max
}

func (h *PickHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.users.Len()
}
