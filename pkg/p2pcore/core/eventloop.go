package core

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/definition"
	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

// Loop is the Event Loop (C4): it owns the network engine exclusively,
// multiplexes the command inbox and the engine's event stream on a
// single goroutine, drives active commands through responsibility-chain
// dispatch, and publishes leftovers as NodeEvents. It also holds the
// Pending Reply Registry.
//
// Every field below is touched from exactly one goroutine (Run's), except
// Registry (which has its own internal lock, see registry.go) and the two
// channels, which are the only cross-goroutine boundaries by design
// (spec §5).
type Loop struct {
	eng engine.Engine
	log definition.Logger

	protocolVersion string

	inbox      chan envelope
	nodeEvents chan NodeEvent
	active     []envelope

	Registry *ReplyRegistry
	nextSlot uint64

	closed chan struct{}
	once   sync.Once
}

// NewLoop constructs a Loop. inboxSize and nodeEventSize bound the
// respective channels; both are finite per spec §5 ("the command channel
// is bounded").
func NewLoop(eng engine.Engine, log definition.Logger, protocolVersion string, registry *ReplyRegistry, inboxSize, nodeEventSize int) *Loop {
	return &Loop{
		eng:             eng,
		log:             log,
		protocolVersion: protocolVersion,
		inbox:           make(chan envelope, inboxSize),
		nodeEvents:      make(chan NodeEvent, nodeEventSize),
		Registry:        registry,
		closed:          make(chan struct{}),
	}
}

// NodeEvents returns the outbound Node Event channel.
func (l *Loop) NodeEvents() <-chan NodeEvent { return l.nodeEvents }

// Run is the main loop: select on whichever of the command inbox or the
// engine's event stream produces first, with no parallelism and no
// preemption. It returns when ctx is cancelled or the engine's event
// channel closes.
func (l *Loop) Run(ctx context.Context) {
	defer l.shutdown()
	events := l.eng.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-l.inbox:
			if !ok {
				return
			}
			l.handleCommand(ctx, env)
		case ev, ok := <-events:
			if !ok {
				return
			}
			l.handleEvent(ev)
		}
	}
}

// shutdown runs once: it signals every blocked Future via closed, closes
// the node-event channel (only Run's goroutine ever sends on it), and
// leaves any still-unfinished Result Cells untouched, per spec §4.4 ("the
// specification does not require graceful completion of in-flight
// commands").
func (l *Loop) shutdown() {
	l.once.Do(func() {
		close(l.closed)
		close(l.nodeEvents)
	})
}

func (l *Loop) handleCommand(ctx context.Context, env envelope) {
	l.active = append(l.active, env)
	env.start(ctx, l.eng)
	if env.finished() {
		l.removeFinished()
	}
}

// removeFinished drops every envelope in the active set that has already
// written its Result Cell. Order among the remaining envelopes is
// preserved since responsibility-chain dispatch is order-sensitive.
func (l *Loop) removeFinished() {
	next := l.active[:0:0]
	for _, e := range l.active {
		if !e.finished() {
			next = append(next, e)
		}
	}
	l.active = next
}

// handleEvent performs responsibility-chain dispatch: ev is offered to
// active commands in insertion order until one consumes it
// (remainder=none) or the chain runs out; any remainder is then offered
// to Node-Event conversion.
func (l *Loop) handleEvent(ev engine.Event) {
	next := make([]envelope, 0, len(l.active))
	remainder := &ev
	for _, e := range l.active {
		if remainder == nil {
			// Chain already terminated for this event; the envelope
			// simply remains active for future events.
			next = append(next, e)
			continue
		}
		keepAlive, rem := e.onEvent(*remainder)
		if keepAlive {
			next = append(next, e)
		}
		remainder = rem
	}
	l.active = next

	if remainder != nil {
		if ne, ok := l.convert(*remainder); ok {
			l.publish(ne)
		}
	}
}

func (l *Loop) publish(ev NodeEvent) {
	select {
	case l.nodeEvents <- ev:
	default:
		l.log.Warnf("node event channel full, dropping %T", ev)
	}
}

func (l *Loop) nextSlotID() uint64 {
	return atomic.AddUint64(&l.nextSlot, 1)
}

// convert implements the Node-Event conversion rules of spec §4.4. It is
// only ever invoked on a remainder, i.e. an event no active command
// claimed.
func (l *Loop) convert(ev engine.Event) (NodeEvent, bool) {
	switch e := ev.(type) {
	case engine.NewListenAddr:
		return Listening{Addr: e.Addr}, true

	case engine.MDNSDiscovered:
		seen := make(map[peer.ID]struct{}, len(e.Peers))
		var deduped []peer.AddrInfo
		for _, pi := range e.Peers {
			l.eng.AddressBook().AddAddrs(pi.ID, pi.Addrs, engine.RecentAddrTTL)
			if _, ok := seen[pi.ID]; ok {
				continue
			}
			seen[pi.ID] = struct{}{}
			deduped = append(deduped, pi)
		}
		for _, pi := range deduped {
			// Connect is a no-op for peers the swarm already has an open
			// connection to, so dialing unconditionally here is safe and
			// avoids needing a separate "already connected" query.
			_ = l.eng.Connect(context.Background(), pi.ID, pi.Addrs)
		}
		return PeersDiscovered{Peers: e.Peers}, true

	case engine.ConnectionEstablished:
		if e.NumEstablished == 1 {
			return PeerConnected{Peer: e.Peer}, true
		}
		return nil, false

	case engine.ConnectionClosed:
		if e.NumEstablished == 0 {
			return PeerDisconnected{Peer: e.Peer}, true
		}
		return nil, false

	case engine.IdentifyReceived:
		if e.ProtocolVersion == l.protocolVersion {
			l.eng.RoutingTable().AddAddresses(e.Peer, e.ListenAddrs)
		}
		return IdentifyReceivedEvent{
			Peer:            e.Peer,
			AgentVersion:    e.AgentVersion,
			ProtocolVersion: e.ProtocolVersion,
		}, true

	case engine.PingSuccess:
		return PingSuccessEvent{Peer: e.Peer, RTT: e.RTT}, true

	case engine.NATStatusChanged:
		return NatStatusChanged{Status: e.Status}, true

	case engine.DCUtRSuccess:
		return HolePunchSucceeded{Peer: e.Peer}, true

	case engine.DCUtRFailure:
		return HolePunchFailed{Peer: e.Peer, Err: e.Err}, true

	case engine.InboundRequest:
		slot := l.nextSlotID()
		l.Registry.Insert(slot, e.Reply)
		return InboundRequestEvent{Peer: e.Peer, SlotID: slot, Request: e.Request}, true

	default:
		// No matching conversion rule and no active command claimed it:
		// silently dropped, per spec §8 invariant 2(c).
		return nil, false
	}
}
