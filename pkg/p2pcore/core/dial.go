package core

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

// DialHandler implements the Dial command (spec §4.2): connect to Peer,
// optionally via pre-known Addrs, and complete on the matching
// connection-established or outgoing-connection-error event.
type DialHandler struct {
	Peer  peer.ID
	Addrs []multiaddr.Multiaddr
}

var _ Handler[struct{}] = (*DialHandler)(nil)

// Start implements Handler.
func (h *DialHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[struct{}]) {
	if err := eng.Connect(ctx, h.Peer, h.Addrs); err != nil {
		cell.Finish(struct{}{}, newError(ErrEngine, "dial rejected synchronously", err))
	}
}

// OnEvent implements Handler. On success it finishes with
// keepAlive=false, remainder=some(event) so the same
// ConnectionEstablished event can still be aggregated into the
// PeerConnected NodeEvent by the loop's conversion step.
func (h *DialHandler) OnEvent(ev engine.Event, cell *ResultCell[struct{}]) (bool, *engine.Event) {
	switch e := ev.(type) {
	case engine.ConnectionEstablished:
		if e.Peer == h.Peer {
			cell.Finish(struct{}{}, nil)
			return false, &ev
		}
	case engine.OutgoingConnectionError:
		if e.Peer == h.Peer {
			cell.Finish(struct{}{}, newError(ErrDialFailed, "", e.Err))
			return false, nil
		}
	}
	return true, &ev
}
