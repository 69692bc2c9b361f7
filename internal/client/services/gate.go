package services

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate admits at most one holder at a time. Callers that find it taken are
// turned away instead of queued.
type Gate struct {
	sem  *semaphore.Weighted
	held atomic.Bool
}

func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// TryEnter reports whether the caller now holds the gate. A true result must
// be paired with Leave.
func (g *Gate) TryEnter() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.held.Store(true)
	return true
}

func (g *Gate) Leave() {
	g.held.Store(false)
	g.sem.Release(1)
}

// Busy reports whether someone holds the gate right now.
func (g *Gate) Busy() bool {
	return g.held.Load()
}
