package core

import (
	"context"
	"sync"
	"time"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

// replySlot is the {slot_id, reply_handle, created_at} tuple spec §3
// describes. Slot ids are assigned by the Loop's monotonic counter and
// are never reused.
type replySlot struct {
	handle    engine.ReplyHandle
	createdAt time.Time
}

// ReplyRegistry is the Pending Reply Registry (C5): a bounded,
// time-to-live keyed slot store for unsendable reply handles. It bridges
// the event loop (inserter) and the Client (taker); the backing map is
// guarded by a mutex because engine.ReplyHandle is not safe for
// concurrent shared use.
type ReplyRegistry struct {
	mu    sync.Mutex
	slots map[uint64]replySlot
	ttl   time.Duration
	now   func() time.Time
}

// NewReplyRegistry creates a registry with the given time-to-live.
func NewReplyRegistry(ttl time.Duration) *ReplyRegistry {
	return newReplyRegistryWithClock(ttl, time.Now)
}

// newReplyRegistryWithClock lets tests inject a fake clock instead of
// sleeping past the real TTL.
func newReplyRegistryWithClock(ttl time.Duration, now func() time.Time) *ReplyRegistry {
	return &ReplyRegistry{
		slots: make(map[uint64]replySlot),
		ttl:   ttl,
		now:   now,
	}
}

// Insert stores handle under slotID, timestamped with the registry's
// clock. Called only from the event loop's goroutine.
func (r *ReplyRegistry) Insert(slotID uint64, handle engine.ReplyHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slotID] = replySlot{handle: handle, createdAt: r.now()}
}

// Take removes and returns the slot's handle, or reports false if the
// slot is absent (never inserted, already taken, or evicted). Safe to
// call from any goroutine; called by the Client in response to
// SendResponse.
func (r *ReplyRegistry) Take(slotID uint64) (engine.ReplyHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[slotID]
	if !ok {
		return nil, false
	}
	delete(r.slots, slotID)
	return s.handle, true
}

// evictExpired drops every entry older than the registry's TTL and
// discards its handle, returning how many were removed.
func (r *ReplyRegistry) evictExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	evicted := 0
	for id, s := range r.slots {
		if now.Sub(s.createdAt) > r.ttl {
			s.handle.Discard()
			delete(r.slots, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the current number of parked slots; used by tests and by
// diagnostics, never by the hot path.
func (r *ReplyRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// RunEviction ticks every 10 seconds until ctx is cancelled, evicting
// expired slots on each tick. Callers start this in its own goroutine
// alongside the Loop's Run.
func (r *ReplyRegistry) RunEviction(ctx context.Context) {
	r.runEviction(ctx)
}

func (r *ReplyRegistry) runEviction(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictExpired()
		}
	}
}
