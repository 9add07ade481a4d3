package core

import (
	"context"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

// Handler is a per-operation state machine closing over one operation's
// inputs and producing a result of type T. Start and OnEvent are the two
// entry points spec §4.2 describes.
type Handler[T any] interface {
	// Start is called once, synchronously on the event loop's goroutine,
	// immediately after the envelope is inserted into the active set. It
	// may call into eng to initiate an operation, recording any
	// engine-assigned id for later event matching, and may complete
	// immediately by calling cell.Finish. It must never block.
	Start(ctx context.Context, eng engine.Engine, cell *ResultCell[T])

	// OnEvent is called once per engine event while the command is
	// active. ev is passed by value so the last handler in the
	// responsibility chain can move it into node-event conversion
	// without an extra clone (spec §9, "event ownership"). The returned
	// keepAlive/remainder pair follows the four-combination table in
	// spec §4.2.
	OnEvent(ev engine.Event, cell *ResultCell[T]) (keepAlive bool, remainder *engine.Event)
}

// envelope is the type-erased carrier stored in the event loop's active
// set: it forgets T while keeping it alive inside a typedEnvelope's
// closure, the two-layer polymorphism design note from spec §9.
type envelope interface {
	start(ctx context.Context, eng engine.Engine)
	onEvent(ev engine.Event) (keepAlive bool, remainder *engine.Event)
	finished() bool
}

// typedEnvelope pairs a Handler[T] with its ResultCell[T], exposing only
// the untyped envelope capability set to the loop.
type typedEnvelope[T any] struct {
	handler Handler[T]
	cell    *ResultCell[T]
}

func newEnvelope[T any](h Handler[T], cell *ResultCell[T]) envelope {
	return &typedEnvelope[T]{handler: h, cell: cell}
}

func (e *typedEnvelope[T]) start(ctx context.Context, eng engine.Engine) {
	e.handler.Start(ctx, eng, e.cell)
}

func (e *typedEnvelope[T]) onEvent(ev engine.Event) (bool, *engine.Event) {
	return e.handler.OnEvent(ev, e.cell)
}

func (e *typedEnvelope[T]) finished() bool {
	_, _, ok := e.cell.Poll()
	return ok
}
