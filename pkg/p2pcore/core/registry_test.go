package core

import (
	"testing"
	"time"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

func TestReplyRegistryInsertAndTake(t *testing.T) {
	r := NewReplyRegistry(time.Minute)
	handle := &engine.FakeReplyHandle{}

	r.Insert(1, handle)
	if r.Len() != 1 {
		t.Fatalf("want len 1, got %d", r.Len())
	}

	got, ok := r.Take(1)
	if !ok {
		t.Fatal("Take reported missing slot")
	}
	if got != handle {
		t.Fatal("Take returned a different handle than was inserted")
	}
	if r.Len() != 0 {
		t.Fatalf("want len 0 after Take, got %d", r.Len())
	}
}

func TestReplyRegistryTakeMissingSlot(t *testing.T) {
	r := NewReplyRegistry(time.Minute)
	if _, ok := r.Take(99); ok {
		t.Fatal("Take reported a slot that was never inserted")
	}
}

func TestReplyRegistryTakeIsOneShot(t *testing.T) {
	r := NewReplyRegistry(time.Minute)
	r.Insert(5, &engine.FakeReplyHandle{})
	if _, ok := r.Take(5); !ok {
		t.Fatal("first Take failed")
	}
	if _, ok := r.Take(5); ok {
		t.Fatal("second Take on the same slot should report missing")
	}
}

func TestReplyRegistryEvictsExpiredSlots(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	r := newReplyRegistryWithClock(10*time.Second, clock)

	expired := &engine.FakeReplyHandle{}
	fresh := &engine.FakeReplyHandle{}
	r.Insert(1, expired)

	now = now.Add(5 * time.Second)
	r.Insert(2, fresh)

	now = now.Add(6 * time.Second) // slot 1 is now 11s old, slot 2 is 6s old
	evicted := r.evictExpired()
	if evicted != 1 {
		t.Fatalf("want 1 eviction, got %d", evicted)
	}
	if !expired.Discarded {
		t.Fatal("expired slot's handle was not discarded")
	}
	if fresh.Discarded {
		t.Fatal("fresh slot's handle was discarded too early")
	}
	if r.Len() != 1 {
		t.Fatalf("want len 1 after eviction, got %d", r.Len())
	}

	if _, ok := r.Take(1); ok {
		t.Fatal("evicted slot is still takeable")
	}
	if _, ok := r.Take(2); !ok {
		t.Fatal("fresh slot should still be takeable")
	}
}
