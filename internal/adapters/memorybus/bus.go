// Package memorybus diffuse les événements du serveur (rafraîchissements, réglages)
// aux abonnés du flux SSE, en mémoire.
package memorybus

import (
	"sync"
	"sync/atomic"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/ports"
)

const defaultBuffer = 64

type Bus struct {
	mu     sync.Mutex
	subs   map[chan ports.Event]struct{}
	closed bool
	buffer int

	dropped atomic.Int64
}

func New() *Bus {
	return NewWithBuffer(defaultBuffer)
}

// NewWithBuffer fixe la capacité du canal de chaque abonné.
func NewWithBuffer(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{subs: make(map[chan ports.Event]struct{}), buffer: buffer}
}

// Publish n'attend jamais: un abonné dont le canal est plein perd l'événement.
func (b *Bus) Publish(topic string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	evt := ports.Event{Topic: topic, Payload: payload}
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Bus) Subscribe() (<-chan ports.Event, func()) {
	ch := make(chan ports.Event, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Close ferme tous les abonnements; Publish devient un no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped compte les événements perdus par des abonnés trop lents.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
