package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/definition"
	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

// syncHandler finishes immediately inside Start, never touching OnEvent.
type syncHandler struct {
	val int
	err error
}

func (h *syncHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[int]) {
	cell.Finish(h.val, h.err)
}

func (h *syncHandler) OnEvent(ev engine.Event, cell *ResultCell[int]) (bool, *engine.Event) {
	return false, &ev
}

func newTestLoop(eng engine.Engine) *Loop {
	registry := NewReplyRegistry(time.Minute)
	return NewLoop(eng, definition.DiscardLogger(), "/p2pcore/1.0.0", registry, 16, 16)
}

func TestFutureSubmitAndAwait(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	f := Submit[int](loop, &syncHandler{val: 7})
	got, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Fatalf("want 7, got %d", got)
	}
}

func TestFutureAwaitIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	f := Submit[int](loop, &syncHandler{val: 11})
	v1, err1 := f.Await(context.Background())
	v2, err2 := f.Await(context.Background())
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if v1 != v2 {
		t.Fatalf("repeated Await diverged: %d vs %d", v1, v2)
	}
}

func TestFutureAwaitRespectsCallerContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go loop.Run(runCtx)

	// A handler that never finishes on its own: Await must still return
	// once its own ctx is cancelled, without aborting the command.
	f := Submit[int](loop, &neverFinishHandler{})

	callCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.Await(callCtx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want context.DeadlineExceeded, got %v", err)
	}
}

func TestFutureAwaitAfterLoopShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	cancel()
	time.Sleep(20 * time.Millisecond)

	f := Submit[int](loop, &syncHandler{val: 1})
	_, err := f.Await(context.Background())
	if !errors.Is(err, ErrChannelClosedErr) {
		t.Fatalf("want ErrChannelClosedErr, got %v", err)
	}
}

type neverFinishHandler struct{}

func (h *neverFinishHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[int]) {
}

func (h *neverFinishHandler) OnEvent(ev engine.Event, cell *ResultCell[int]) (bool, *engine.Event) {
	return true, nil
}
