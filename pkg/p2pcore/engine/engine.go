// Package engine wraps a concrete libp2p-style protocol stack behind a
// narrow interface so that the command runtime in pkg/p2pcore/core never
// touches go-libp2p types directly. The engine owns the host, the DHT, and
// every other protocol behaviour; it is only ever called from the single
// goroutine that also reads its Events() channel.
package engine

import (
	"context"
	"errors"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// ErrEmptyRoutingTable is returned synchronously by Bootstrap when the
// routing table has no known peers and no bootstrap peers were configured.
var ErrEmptyRoutingTable = errors.New("engine: routing table is empty")

// Quorum is the acceptance threshold for a DHT write.
type Quorum struct {
	kind  quorumKind
	exact int
}

type quorumKind int

const (
	QuorumOne quorumKind = iota
	QuorumMajority
	QuorumAll
	QuorumExact
)

// One requires a single peer to accept the write.
func One() Quorum { return Quorum{kind: QuorumOne} }

// Majority requires a majority of the replica set.
func Majority() Quorum { return Quorum{kind: QuorumMajority} }

// All requires every member of the replica set.
func All() Quorum { return Quorum{kind: QuorumAll} }

// Exact requires exactly n acknowledgements.
func Exact(n int) Quorum { return Quorum{kind: QuorumExact, exact: n} }

// Kind reports which of One/Majority/All/Exact this quorum is.
func (q Quorum) Kind() quorumKind { return q.kind }

// N returns the exact count for an Exact quorum (undefined otherwise).
func (q Quorum) N() int { return q.exact }

// Record is a DHT record as returned by GetRecord.
type Record struct {
	Key   []byte
	Value []byte
}

// QueryStats accumulates cumulative statistics across the progress events
// of a multi-step DHT query.
type QueryStats struct {
	PeersContacted int
	RoundsTaken    int
}

// Merge folds other into the receiver's running total.
func (s *QueryStats) Merge(other QueryStats) {
	s.PeersContacted += other.PeersContacted
	s.RoundsTaken += other.RoundsTaken
}

// ReplyHandle is a one-shot, non-clonable capability to answer a single
// InboundRequest. It is not safe for concurrent use: callers must not
// retain it beyond a single Send call, which is exactly why the command
// runtime parks it in the Pending Reply Registry instead of handing it
// directly to application code.
type ReplyHandle interface {
	Send(response []byte) error
	// Discard releases the underlying stream without sending a response,
	// used when a slot is evicted or the loop shuts down.
	Discard()
}

// AddressBook is the subset of the host's peerstore used to register
// freshly discovered addresses before dialing.
type AddressBook interface {
	AddAddrs(p peer.ID, addrs []multiaddr.Multiaddr, ttl AddrTTL)
}

// AddrTTL is an opaque time-to-live token understood by AddressBook
// implementations (concretely time.Duration in the libp2p-backed engine).
type AddrTTL int64

// RoutingTable is the subset of the DHT routing table the loop needs for
// protocol-version gated admission.
type RoutingTable interface {
	AddAddresses(p peer.ID, addrs []multiaddr.Multiaddr)
}

// Engine is the narrow capability surface the command runtime drives. A
// concrete implementation (Host, in this package) wraps go-libp2p and
// go-libp2p-kad-dht; tests drive a Fake implementation instead.
type Engine interface {
	Connect(ctx context.Context, p peer.ID, addrs []multiaddr.Multiaddr) error
	SendRequest(ctx context.Context, p peer.ID, req []byte) (requestID uint64, err error)
	SendResponse(reply ReplyHandle, resp []byte) error

	Bootstrap(ctx context.Context) (queryID uint64, err error)
	StartProviding(ctx context.Context, key []byte) (queryID uint64, err error)
	StopProviding(key []byte) error
	PutRecord(ctx context.Context, key, value []byte, quorum Quorum) (queryID uint64, err error)
	GetRecord(ctx context.Context, key []byte) (queryID uint64, err error)
	RemoveRecord(key []byte) error
	GetProviders(ctx context.Context, key []byte) (queryID uint64, err error)
	GetClosestPeers(ctx context.Context, key []byte) (queryID uint64, err error)

	AddressBook() AddressBook
	RoutingTable() RoutingTable
	HasKnownPeers() bool

	// Events returns the single outbound event channel. It is only ever
	// read by the event loop's goroutine.
	Events() <-chan Event

	Close() error
}
