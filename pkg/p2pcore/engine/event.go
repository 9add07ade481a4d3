package engine

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// Event is the closed set of occurrences the Engine surfaces on its event
// channel. It is sealed: only types defined in this package implement it.
type Event interface {
	isEngineEvent()
}

// ConnectionEstablished fires whenever a new connection to Peer is
// established. NumEstablished is the total connection count to that peer
// after this connection, at whatever granularity the underlying swarm
// reports it (connection granularity, not peer granularity — the loop is
// responsible for collapsing 0<->1 transitions into peer-level events).
type ConnectionEstablished struct {
	Peer           peer.ID
	NumEstablished int
}

// ConnectionClosed fires whenever a connection to Peer closes.
type ConnectionClosed struct {
	Peer           peer.ID
	NumEstablished int
}

// OutgoingConnectionError fires when a dial attempt to Peer fails.
type OutgoingConnectionError struct {
	Peer peer.ID
	Err  error
}

// MessageResponse fires when a previously sent request receives a response.
type MessageResponse struct {
	Peer      peer.ID
	RequestID uint64
	Response  []byte
}

// OutboundFailure fires when a previously sent request fails (timeout,
// stream reset, peer unreachable, ...).
type OutboundFailure struct {
	Peer      peer.ID
	RequestID uint64
	Err       error
}

// InboundRequest fires when a remote peer opens a request/response stream
// addressed to us. Reply is a one-shot, non-clonable capability to answer;
// it must be parked in the Pending Reply Registry until the application
// answers it via SendResponse.
type InboundRequest struct {
	Peer    peer.ID
	Request []byte
	Reply   ReplyHandle
}

// DHTBootstrapProgress fires one or more times per Bootstrap call. Last
// marks the terminal event for QueryID.
type DHTBootstrapProgress struct {
	QueryID          uint64
	Last             bool
	RemainingBuckets int
	Err              error
}

// DHTPutProgress fires for PutRecord / StartProviding calls.
type DHTPutProgress struct {
	QueryID uint64
	Last    bool
	Stats   QueryStats
	Err     error
}

// DHTGetProvidersProgress fires one or more times per GetProviders call,
// each carrying an incremental batch of discovered providers.
type DHTGetProvidersProgress struct {
	QueryID uint64
	Last    bool
	Peers   []peer.ID
	Stats   QueryStats
	Err     error
}

// DHTGetRecordProgress fires one or more times per GetRecord call.
type DHTGetRecordProgress struct {
	QueryID uint64
	Last    bool
	Record  *Record
	Err     error
}

// DHTGetClosestPeersProgress fires one or more times per
// GetClosestPeers call.
type DHTGetClosestPeersProgress struct {
	QueryID uint64
	Last    bool
	Peers   []peer.ID
	Err     error
}

// NewListenAddr fires when the host binds a new listen address.
type NewListenAddr struct {
	Addr multiaddr.Multiaddr
}

// MDNSDiscovered fires with a batch of peers discovered via mDNS on the
// local network. The same peer may reappear across separate events.
type MDNSDiscovered struct {
	Peers []peer.AddrInfo
}

// IdentifyReceived fires whenever the identify protocol completes for a
// peer, regardless of whether its protocol version matches ours.
type IdentifyReceived struct {
	Peer            peer.ID
	AgentVersion    string
	ProtocolVersion string
	ListenAddrs     []multiaddr.Multiaddr
}

// PingSuccess fires on a successful ping round-trip.
type PingSuccess struct {
	Peer peer.ID
	RTT  time.Duration
}

// NATStatusChanged fires when AutoNAT's reachability assessment changes.
type NATStatusChanged struct {
	Status string
}

// DCUtRSuccess fires when a hole-punch to Peer succeeds.
type DCUtRSuccess struct {
	Peer peer.ID
}

// DCUtRFailure fires when a hole-punch to Peer fails.
type DCUtRFailure struct {
	Peer peer.ID
	Err  error
}

func (ConnectionEstablished) isEngineEvent()     {}
func (ConnectionClosed) isEngineEvent()          {}
func (OutgoingConnectionError) isEngineEvent()   {}
func (MessageResponse) isEngineEvent()           {}
func (OutboundFailure) isEngineEvent()           {}
func (InboundRequest) isEngineEvent()            {}
func (DHTBootstrapProgress) isEngineEvent()      {}
func (DHTPutProgress) isEngineEvent()            {}
func (DHTGetProvidersProgress) isEngineEvent()   {}
func (DHTGetRecordProgress) isEngineEvent()      {}
func (DHTGetClosestPeersProgress) isEngineEvent() {}
func (NewListenAddr) isEngineEvent()             {}
func (MDNSDiscovered) isEngineEvent()            {}
func (IdentifyReceived) isEngineEvent()          {}
func (PingSuccess) isEngineEvent()               {}
func (NATStatusChanged) isEngineEvent()          {}
func (DCUtRSuccess) isEngineEvent()              {}
func (DCUtRFailure) isEngineEvent()              {}
