package core

import (
	"context"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

// SendResponseHandler implements the Send-Response command: drain the
// Pending Reply Registry for SlotID and, if present, answer through the
// engine. It never waits on an event — it always finishes inside Start.
type SendResponseHandler struct {
	SlotID   uint64
	Response []byte
	Registry *ReplyRegistry
}

var _ Handler[struct{}] = (*SendResponseHandler)(nil)

// Start implements Handler.
func (h *SendResponseHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[struct{}]) {
	handle, ok := h.Registry.Take(h.SlotID)
	if !ok {
		cell.Finish(struct{}{}, ErrSlotExpiredErr)
		return
	}
	if err := eng.SendResponse(handle, h.Response); err != nil {
		cell.Finish(struct{}{}, newError(ErrEngine, "sending response", err))
		return
	}
	cell.Finish(struct{}{}, nil)
}

// OnEvent implements Handler. SendResponse never stays active past
// Start, so this is never actually invoked by the loop; it exists only
// to satisfy the Handler contract.
func (h *SendResponseHandler) OnEvent(ev engine.Event, cell *ResultCell[struct{}]) (bool, *engine.Event) {
	return false, &ev
}
