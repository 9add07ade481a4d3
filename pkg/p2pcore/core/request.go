package core

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

// SendRequestHandler implements the Send-Request command: open a fresh
// substream to Peer, send Request, and complete on the matching
// message-response or outbound-failure event, discriminated solely by
// {peer, request_id} (spec §4.2, §5 — no temporal ordering is assumed
// between concurrent requests to the same peer).
type SendRequestHandler struct {
	Peer    peer.ID
	Request []byte

	requestID uint64
}

var _ Handler[[]byte] = (*SendRequestHandler)(nil)

// Start implements Handler.
func (h *SendRequestHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[[]byte]) {
	id, err := eng.SendRequest(ctx, h.Peer, h.Request)
	if err != nil {
		cell.Finish(nil, newError(ErrRequestFailed, "", err))
		return
	}
	h.requestID = id
}

// OnEvent implements Handler.
func (h *SendRequestHandler) OnEvent(ev engine.Event, cell *ResultCell[[]byte]) (bool, *engine.Event) {
	switch e := ev.(type) {
	case engine.MessageResponse:
		if e.Peer == h.Peer && e.RequestID == h.requestID {
			cell.Finish(e.Response, nil)
			return false, nil
		}
	case engine.OutboundFailure:
		if e.Peer == h.Peer && e.RequestID == h.requestID {
			cell.Finish(nil, newError(ErrRequestFailed, "", e.Err))
			return false, nil
		}
	}
	return true, &ev
}
