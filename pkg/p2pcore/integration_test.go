package p2pcore_test

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/nodeforge/p2pcore/pkg/p2pcore"
)

func newLoopbackConfig() p2pcore.Config {
	cfg := p2pcore.DefaultConfig()
	cfg.EnableMDNS = false
	addr, _ := multiaddr.NewMultiaddr("/ip4/127.0.0.1/tcp/0")
	cfg.ListenAddresses = []multiaddr.Multiaddr{addr}
	return cfg
}

func startNode(t *testing.T, ctx context.Context) (*p2pcore.Client, <-chan p2pcore.NodeEvent, peer.ID) {
	t.Helper()
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	client, events, err := p2pcore.Start(ctx, priv, newLoopbackConfig())
	if err != nil {
		t.Fatalf("starting node: %v", err)
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		t.Fatalf("deriving peer id: %v", err)
	}
	return client, events, id
}

func waitForListening(t *testing.T, events <-chan p2pcore.NodeEvent) multiaddr.Multiaddr {
	t.Helper()
	for {
		select {
		case ev := <-events:
			if l, ok := ev.(p2pcore.Listening); ok {
				return l.Addr
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a listen address")
		}
	}
}

// TestTwoNodesDialAndExchangeRequest exercises S1/S2 from the spec's
// integration scenarios: two real Clients over loopback TCP, one dials
// the other, then a request/response round trip completes.
func TestTwoNodesDialAndExchangeRequest(t *testing.T) {
	if testing.Short() {
		t.Skip("spins up real libp2p hosts; skipped in -short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientA, eventsA, idA := startNode(t, ctx)
	defer clientA.Close()
	clientB, eventsB, idB := startNode(t, ctx)
	defer clientB.Close()

	addrA := waitForListening(t, eventsA)
	_ = waitForListening(t, eventsB)

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dialCancel()
	if err := clientB.Dial(dialCtx, idA, addrA); err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	// Confirm the application observes the connection on both sides.
	if !waitForPeerConnected(t, eventsA, idB) {
		t.Fatal("node A never observed PeerConnected for B")
	}

	respCh := make(chan struct{})
	go func() {
		defer close(respCh)
		for {
			select {
			case ev := <-eventsA:
				ir, ok := ev.(p2pcore.InboundRequestEvent)
				if !ok {
					continue
				}
				answerCtx, answerCancel := context.WithTimeout(ctx, 5*time.Second)
				_ = clientA.SendResponse(answerCtx, ir.SlotID, append([]byte("echo:"), ir.Request...))
				answerCancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	reqCtx, reqCancel := context.WithTimeout(ctx, 10*time.Second)
	defer reqCancel()
	resp, err := clientB.SendRequest(reqCtx, idA, []byte("ping"))
	if err != nil {
		t.Fatalf("send request failed: %v", err)
	}
	if string(resp) != "echo:ping" {
		t.Fatalf("want echo:ping, got %q", resp)
	}

	select {
	case <-respCh:
	case <-time.After(5 * time.Second):
		t.Fatal("responder goroutine never observed the inbound request")
	}
}

func waitForPeerConnected(t *testing.T, events <-chan p2pcore.NodeEvent, want peer.ID) bool {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-events:
			if pc, ok := ev.(p2pcore.PeerConnected); ok && pc.Peer == want {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
