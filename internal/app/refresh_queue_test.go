package app

import (
	"errors"
	"testing"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/domain"
)

func TestRefreshQueue_DedupesUntilDone(t *testing.T) {
	q := NewRefreshQueue(4)

	if err := q.Enqueue(usMovie); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(usMovie); !errors.Is(err, ErrRefreshQueued) {
		t.Fatalf("second Enqueue: want ErrRefreshQueued, got %v", err)
	}
	if q.Depth() != 1 {
		t.Fatalf("depth: want 1, got %d", q.Depth())
	}

	key := <-q.C()
	if key != usMovie {
		t.Fatalf("want %s, got %s", usMovie, key)
	}
	// Toujours pending tant que le worker n'a pas terminé.
	if err := q.Enqueue(usMovie); !errors.Is(err, ErrRefreshQueued) {
		t.Fatalf("enqueue during refresh: want ErrRefreshQueued, got %v", err)
	}

	q.Done(usMovie)
	if q.Pending(usMovie) {
		t.Fatalf("key still pending after Done")
	}
	if err := q.Enqueue(usMovie); err != nil {
		t.Fatalf("Enqueue after Done: %v", err)
	}
}

func TestRefreshQueue_Full(t *testing.T) {
	q := NewRefreshQueue(1)
	if err := q.Enqueue(usMovie); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(usSeries); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("want ErrQueueFull, got %v", err)
	}
	if q.Pending(usSeries) {
		t.Fatalf("rejected key must not stay pending")
	}

	// Trigger ignore les erreurs.
	q.Trigger(domain.NewPoolKey("fr", domain.ContentMovie))
}
