package p2pcore

import (
	"github.com/nodeforge/p2pcore/pkg/p2pcore/core"
	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

// NodeEvent is the closed enumeration of events a Client surfaces on its
// event channel (spec §3). Aliased from core so callers never need to
// import the internal runtime package directly.
type NodeEvent = core.NodeEvent

type (
	Listening             = core.Listening
	PeersDiscovered       = core.PeersDiscovered
	PeerConnected         = core.PeerConnected
	PeerDisconnected      = core.PeerDisconnected
	IdentifyReceivedEvent = core.IdentifyReceivedEvent
	PingSuccessEvent      = core.PingSuccessEvent
	NatStatusChanged      = core.NatStatusChanged
	HolePunchSucceeded    = core.HolePunchSucceeded
	HolePunchFailed       = core.HolePunchFailed
	InboundRequestEvent   = core.InboundRequestEvent
)

// Quorum is the acceptance threshold for a DHT write, re-exported from the
// engine package so callers never import it directly.
type Quorum = engine.Quorum

// QuorumOne, QuorumMajority, QuorumAll and QuorumExact construct the
// Quorum values a PutRecord call accepts (see Client.PutRecord for how q
// is used).
func QuorumOne() Quorum        { return engine.One() }
func QuorumMajority() Quorum   { return engine.Majority() }
func QuorumAll() Quorum        { return engine.All() }
func QuorumExact(n int) Quorum { return engine.Exact(n) }

// BootstrapResult, QueryStats, GetProvidersResult, GetRecordResult and
// GetClosestPeersResult are the result types of the DHT commands,
// re-exported from core.
type (
	BootstrapResult       = core.BootstrapResult
	QueryStats            = core.QueryStats
	GetProvidersResult    = core.GetProvidersResult
	GetRecordResult       = core.GetRecordResult
	GetClosestPeersResult = core.GetClosestPeersResult
)

// Error is the typed failure returned by Client methods.
type Error = core.Error
