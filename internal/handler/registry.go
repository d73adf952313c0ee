package handler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tailorbook/api/internal/order"
)

type intakeEntry struct {
	shopID   uuid.UUID
	ctrl     *order.Controller
	lastUsed time.Time
}

// Registry holds the intake sessions of all shops in memory. Sessions
// expire after ttl without a request.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*intakeEntry
}

// NewRegistry creates a Registry. A nil now uses time.Now.
func NewRegistry(ttl time.Duration, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		ttl:      ttl,
		now:      now,
		sessions: make(map[uuid.UUID]*intakeEntry),
	}
}

// Add stores ctrl and returns the new session ID.
func (reg *Registry) Add(ctrl *order.Controller) uuid.UUID {
	id := uuid.New()
	reg.mu.Lock()
	reg.sessions[id] = &intakeEntry{
		shopID:   ctrl.Session().ShopID,
		ctrl:     ctrl,
		lastUsed: reg.now(),
	}
	reg.mu.Unlock()
	return id
}

// Get returns the session's controller. Sessions of other shops and
// expired sessions are not found.
func (reg *Registry) Get(shopID, id uuid.UUID) (*order.Controller, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	e, ok := reg.sessions[id]
	if !ok || e.shopID != shopID {
		return nil, false
	}
	now := reg.now()
	if now.Sub(e.lastUsed) > reg.ttl {
		delete(reg.sessions, id)
		return nil, false
	}
	e.lastUsed = now
	return e.ctrl, true
}

// Remove drops the session. It reports whether it existed.
func (reg *Registry) Remove(shopID, id uuid.UUID) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	e, ok := reg.sessions[id]
	if !ok || e.shopID != shopID {
		return false
	}
	delete(reg.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (reg *Registry) Sweep() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	now := reg.now()
	n := 0
	for id, e := range reg.sessions {
		if now.Sub(e.lastUsed) > reg.ttl {
			delete(reg.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (reg *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reg.Sweep(); n > 0 {
				log.Printf("Expired %d intake sessions", n)
			}
		}
	}
}
