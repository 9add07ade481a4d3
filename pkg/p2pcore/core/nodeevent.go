package core

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// NodeEvent is the closed, versioned enumeration of events the core
// surfaces to the application (spec §3). Go has no closed enum, so this
// is realized as a sealed interface: only types in this package implement
// it (REDESIGN FLAGS #2 in SPEC_FULL.md).
type NodeEvent interface {
	isNodeEvent()
}

// Listening fires when the host binds a new listen address.
type Listening struct {
	Addr multiaddr.Multiaddr
}

// PeersDiscovered fires once per mDNS discovery event, carrying every
// (peer, address) pair seen in that event as discovered; within-event
// deduplication applies only to the dials the loop makes, not to this
// list (spec §4.4, §5).
type PeersDiscovered struct {
	Peers []peer.AddrInfo
}

// PeerConnected fires exactly once per 0->1 connection-count transition
// for a peer (peer granularity, not connection granularity).
type PeerConnected struct {
	Peer peer.ID
}

// PeerDisconnected fires exactly once per 1->0 connection-count
// transition for a peer.
type PeerDisconnected struct {
	Peer peer.ID
}

// IdentifyReceivedEvent fires for every completed identify exchange,
// regardless of whether the remote's protocol version matches ours.
type IdentifyReceivedEvent struct {
	Peer            peer.ID
	AgentVersion    string
	ProtocolVersion string
}

// PingSuccessEvent fires on a successful ping round trip.
type PingSuccessEvent struct {
	Peer peer.ID
	RTT  time.Duration
}

// NatStatusChanged fires when the engine's reachability assessment
// changes.
type NatStatusChanged struct {
	Status string
}

// HolePunchSucceeded fires when a DCUtR hole-punch to Peer succeeds.
type HolePunchSucceeded struct {
	Peer peer.ID
}

// HolePunchFailed fires when a DCUtR hole-punch to Peer fails.
type HolePunchFailed struct {
	Peer peer.ID
	Err  error
}

// InboundRequestEvent fires when a remote peer's request has been parked
// in the Pending Reply Registry under SlotID; the application answers it
// by issuing a SendResponse command carrying the same SlotID.
type InboundRequestEvent struct {
	Peer    peer.ID
	SlotID  uint64
	Request []byte
}

func (Listening) isNodeEvent()             {}
func (PeersDiscovered) isNodeEvent()       {}
func (PeerConnected) isNodeEvent()         {}
func (PeerDisconnected) isNodeEvent()      {}
func (IdentifyReceivedEvent) isNodeEvent() {}
func (PingSuccessEvent) isNodeEvent()      {}
func (NatStatusChanged) isNodeEvent()      {}
func (HolePunchSucceeded) isNodeEvent()    {}
func (HolePunchFailed) isNodeEvent()       {}
func (InboundRequestEvent) isNodeEvent()   {}
