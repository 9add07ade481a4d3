package core

import (
	"context"
	"sync"
)

type futureState int

const (
	stateHasHandler futureState = iota
	stateSubmitted
	stateDrained
)

// Future is the lazy submitter + poller bridging an async caller to a
// Handler's state machine. Nothing runs until Await is called: like a
// Rust future, constructing one has no side effects.
//
// Go has no poll-driven executor, so Await blocks the calling goroutine
// instead of returning "pending" to one. That is the one REDESIGN in this
// runtime (see SPEC_FULL.md's REDESIGN FLAGS); the ordering invariant the
// spec actually cares about — submit the envelope, THEN start watching the
// Result Cell, never the other way around — is preserved exactly, and
// because ResultCell.Done() is a channel that is safe to select on
// whether or not it is already closed, there is no lost-wakeup window
// even though the mechanism differs from a waker registration.
type Future[T any] struct {
	mu      sync.Mutex
	state   futureState
	handler Handler[T]
	inbox   chan<- envelope
	loop    *Loop
	cell    *ResultCell[T]
}

// Submit constructs a Future[T] bound to loop for the given handler. No
// command runs until the caller calls Await on the returned Future.
func Submit[T any](loop *Loop, h Handler[T]) *Future[T] {
	return newFuture[T](h, loop)
}

func newFuture[T any](h Handler[T], loop *Loop) *Future[T] {
	return &Future[T]{
		state:   stateHasHandler,
		handler: h,
		inbox:   loop.inbox,
		loop:    loop,
		cell:    NewResultCell[T](),
	}
}

// Await submits the command on first call (constructing the envelope and
// sending it on the loop's inbox) and then waits for the Result Cell to
// be written, or for ctx to be cancelled. A second call observes the
// already-submitted state and goes straight to waiting.
//
// Cancelling ctx does not abort the in-flight command (spec §5): it only
// stops this call from waiting on it. The command runs to completion on
// the loop regardless, and its result is discarded when the cell is
// garbage collected.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	f.mu.Lock()
	switch f.state {
	case stateHasHandler:
		env := newEnvelope[T](f.handler, f.cell)
		select {
		case f.inbox <- env:
			f.state = stateSubmitted
		case <-f.loop.closed:
			f.state = stateDrained
			f.mu.Unlock()
			var zero T
			return zero, ErrChannelClosedErr
		}
	case stateDrained:
		f.mu.Unlock()
		var zero T
		return zero, ErrChannelClosedErr
	}
	f.mu.Unlock()

	// Fall through to the cell regardless of whether this call just
	// submitted or a previous call already did: this is the "submit,
	// then read the cell in the same call" pattern spec §4.3/§9 calls
	// the critical correctness obligation, preserved verbatim.
	select {
	case <-f.cell.Done():
		val, err, _ := f.cell.Poll()
		return val, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-f.loop.closed:
		if val, err, ok := f.cell.Poll(); ok {
			return val, err
		}
		var zero T
		return zero, ErrChannelClosedErr
	}
}
