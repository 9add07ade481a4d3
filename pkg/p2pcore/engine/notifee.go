package engine

import (
	"github.com/libp2p/go-libp2p/core/peer"
)

// mdnsNotifee bridges mDNS's push-style HandlePeerFound callback into the
// engine's single outbound event channel, the same adapter shape used by
// the reference goop2 libp2p node assembler this package is grounded on.
type mdnsNotifee struct {
	h *Host
}

// HandlePeerFound implements mdns.Notifee.
func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	n.h.emit(MDNSDiscovered{Peers: []peer.AddrInfo{pi}})
}
