// Package p2pcore is a reusable peer-to-peer networking library built on
// go-libp2p. It exposes a small command/event surface (Client, NodeEvent)
// backed internally by a single-goroutine runtime in pkg/p2pcore/core that
// owns the network engine in pkg/p2pcore/engine.
package p2pcore

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// Config is the closed set of node configuration options. Grounded on
// bassosimone-nop's Config/NewConfig shape: a plain struct with every
// field given a sane zero-value default, not a functional-options
// builder, because the field set is fixed and small.
type Config struct {
	ProtocolVersion string
	AgentVersion    string

	ListenAddresses []multiaddr.Multiaddr
	BootstrapPeers  []peer.AddrInfo

	IdleConnectionTimeout time.Duration

	EnableMDNS        bool
	EnableRelayClient bool
	EnableDCUtR       bool
	EnableAutoNAT     bool
	KadServerMode     bool

	MaxRequestSize  int64
	MaxResponseSize int64

	PendingReplyTTL time.Duration

	CommandQueueSize int
	NodeEventBuffer  int
}

// DefaultConfig returns a Config with every option set to the library's
// documented default: mDNS on, everything else conservative and off,
// listening on every IPv4 and IPv6 interface on an OS-chosen TCP port, a
// 60s pending-reply TTL and 1 MiB message caps.
func DefaultConfig() Config {
	return Config{
		ProtocolVersion: "/p2pcore/1.0.0",
		AgentVersion:    "p2pcore",
		ListenAddresses: []multiaddr.Multiaddr{
			mustAddr("/ip4/0.0.0.0/tcp/0"),
			mustAddr("/ip6/::/tcp/0"),
		},
		IdleConnectionTimeout: 30 * time.Second,
		EnableMDNS:            true,
		EnableRelayClient:     false,
		EnableDCUtR:           false,
		EnableAutoNAT:         false,
		KadServerMode:         false,
		MaxRequestSize:        1 << 20,
		MaxResponseSize:       1 << 20,
		PendingReplyTTL:       60 * time.Second,
		CommandQueueSize:      256,
		NodeEventBuffer:       256,
	}
}

func mustAddr(s string) multiaddr.Multiaddr {
	a, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		panic("p2pcore: invalid default listen address " + s + ": " + err.Error())
	}
	return a
}
