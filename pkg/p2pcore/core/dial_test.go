package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/goleak"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

func TestDialSucceedsOnConnectionEstablished(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	p := peer.ID("peer-a")
	f := Submit[struct{}](loop, &DialHandler{Peer: p})

	go func() {
		time.Sleep(10 * time.Millisecond)
		fake.Push(engine.ConnectionEstablished{Peer: p, NumEstablished: 1})
	}()

	if _, err := f.Await(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDialFailsOnOutgoingConnectionError(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	p := peer.ID("peer-a")
	f := Submit[struct{}](loop, &DialHandler{Peer: p})

	dialErr := errors.New("connection refused")
	go func() {
		time.Sleep(10 * time.Millisecond)
		fake.Push(engine.OutgoingConnectionError{Peer: p, Err: dialErr})
	}()

	_, err := f.Await(context.Background())
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Kind != ErrDialFailed {
		t.Fatalf("want ErrDialFailed, got %v", err)
	}
}

func TestDialIgnoresEventsForOtherPeers(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := engine.NewFake()
	loop := newTestLoop(fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	target := peer.ID("peer-target")
	other := peer.ID("peer-other")

	f := Submit[struct{}](loop, &DialHandler{Peer: target})

	go func() {
		time.Sleep(10 * time.Millisecond)
		fake.Push(engine.ConnectionEstablished{Peer: other, NumEstablished: 1})
		fake.Push(engine.ConnectionEstablished{Peer: target, NumEstablished: 1})
	}()

	if _, err := f.Await(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
