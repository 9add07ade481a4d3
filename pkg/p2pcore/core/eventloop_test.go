package core

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/goleak"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/definition"
	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

func drainNodeEvent(t *testing.T, loop *Loop) NodeEvent {
	t.Helper()
	select {
	case ev := <-loop.NodeEvents():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a node event")
		return nil
	}
}

func TestPeerConnectedFiresOnlyOnFirstConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	p := peer.ID("peer-a")
	fake.Push(engine.ConnectionEstablished{Peer: p, NumEstablished: 1})
	ev := drainNodeEvent(t, loop)
	if _, ok := ev.(PeerConnected); !ok {
		t.Fatalf("want PeerConnected, got %T", ev)
	}

	// A second connection to the same peer (NumEstablished=2) must not
	// fire another PeerConnected.
	fake.Push(engine.ConnectionEstablished{Peer: p, NumEstablished: 2})
	select {
	case ev := <-loop.NodeEvents():
		t.Fatalf("unexpected node event for a non-first connection: %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPeerDisconnectedFiresOnlyOnLastConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	p := peer.ID("peer-a")
	fake.Push(engine.ConnectionClosed{Peer: p, NumEstablished: 1})
	select {
	case ev := <-loop.NodeEvents():
		t.Fatalf("unexpected node event while connections remain: %T", ev)
	case <-time.After(50 * time.Millisecond):
	}

	fake.Push(engine.ConnectionClosed{Peer: p, NumEstablished: 0})
	ev := drainNodeEvent(t, loop)
	if _, ok := ev.(PeerDisconnected); !ok {
		t.Fatalf("want PeerDisconnected, got %T", ev)
	}
}

func TestResponsibilityChainDispatchesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	p1, p2 := peer.ID("peer-1"), peer.ID("peer-2")
	f1 := Submit[struct{}](loop, &DialHandler{Peer: p1})
	f2 := Submit[struct{}](loop, &DialHandler{Peer: p2})

	// Both commands must be submitted (and therefore active on the loop)
	// before either event is pushed, so the chain genuinely has two
	// entries when p2's event arrives.
	errs := make(chan error, 2)
	go func() { _, err := f1.Await(context.Background()); errs <- err }()
	go func() { _, err := f2.Await(context.Background()); errs <- err }()
	time.Sleep(20 * time.Millisecond)

	// p2's event must reach f2 even though f1 was submitted first and is
	// still active: each event is offered down the chain until one claims it.
	fake.Push(engine.ConnectionEstablished{Peer: p2, NumEstablished: 1})
	fake.Push(engine.ConnectionEstablished{Peer: p1, NumEstablished: 1})

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for dial futures to complete")
		}
	}
}

func TestIdentifyGatesRoutingTableByProtocolVersion(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	registry := NewReplyRegistry(time.Minute)
	loop := NewLoop(fake, definition.DiscardLogger(), "/p2pcore/1.0.0", registry, 16, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	matching := peer.ID("peer-match")
	mismatched := peer.ID("peer-mismatch")

	fake.Push(engine.IdentifyReceived{Peer: matching, ProtocolVersion: "/p2pcore/1.0.0"})
	ev := drainNodeEvent(t, loop)
	if _, ok := ev.(IdentifyReceivedEvent); !ok {
		t.Fatalf("want IdentifyReceivedEvent, got %T", ev)
	}

	fake.Push(engine.IdentifyReceived{Peer: mismatched, ProtocolVersion: "/other/1.0.0"})
	ev = drainNodeEvent(t, loop)
	if _, ok := ev.(IdentifyReceivedEvent); !ok {
		t.Fatalf("want IdentifyReceivedEvent, got %T", ev)
	}
	// Both still surface as IdentifyReceivedEvent: the protocol-version
	// gate only controls routing-table admission, asserted directly below
	// via the recording fakeRoutingTable rather than the node event.
	admitted := fake.RoutingTableCalls()
	if len(admitted) != 1 || admitted[0] != matching {
		t.Fatalf("want routing table admission of only %q, got %v", matching, admitted)
	}
}

func TestInboundRequestParksSlotInRegistry(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	handle := &engine.FakeReplyHandle{}
	fake.Push(engine.InboundRequest{Peer: peer.ID("peer-a"), Request: []byte("hi"), Reply: handle})

	ev := drainNodeEvent(t, loop)
	ir, ok := ev.(InboundRequestEvent)
	if !ok {
		t.Fatalf("want InboundRequestEvent, got %T", ev)
	}
	if string(ir.Request) != "hi" {
		t.Fatalf("want request 'hi', got %q", ir.Request)
	}
	if _, ok := loop.Registry.Take(ir.SlotID); !ok {
		t.Fatal("slot id from InboundRequestEvent was not present in the registry")
	}
}
