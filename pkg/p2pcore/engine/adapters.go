package engine

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/multiformats/go-multiaddr"
)

// peerstoreAddressBook adapts a libp2p Peerstore to AddressBook.
type peerstoreAddressBook struct {
	ps peerstore.Peerstore
}

func (b peerstoreAddressBook) AddAddrs(p peer.ID, addrs []multiaddr.Multiaddr, ttl AddrTTL) {
	b.ps.AddAddrs(p, addrs, time.Duration(ttl))
}

// TempAddrTTL, RecentAddrTTL and PermanentAddrTTL mirror the libp2p
// peerstore TTL tokens as AddrTTL values so callers outside this package
// don't need to import peerstore directly.
const (
	TempAddrTTL      = AddrTTL(peerstore.TempAddrTTL)
	RecentAddrTTL    = AddrTTL(peerstore.RecentlyConnectedAddrTTL)
	PermanentAddrTTL = AddrTTL(peerstore.PermanentAddrTTL)
)

// dhtRoutingTable adapts the Kademlia DHT's routing table to RoutingTable.
type dhtRoutingTable struct {
	dht *dht.IpfsDHT
}

func (t dhtRoutingTable) AddAddresses(p peer.ID, addrs []multiaddr.Multiaddr) {
	t.dht.Host().Peerstore().AddAddrs(p, addrs, peerstore.ConnectedAddrTTL)
	_, _ = t.dht.RoutingTable().TryAddPeer(p, true, false)
}
