package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// Fake is an in-memory Engine double used by pkg/p2pcore/core's unit
// tests to drive Handler/Loop behaviour without a live libp2p host.
// Unless a hook is set, every method succeeds synchronously (id-returning
// methods with a freshly allocated id); only RoutingTable().AddAddresses
// calls are recorded.
type Fake struct {
	mu sync.Mutex

	events chan Event

	ConnectFn        func(ctx context.Context, p peer.ID, addrs []multiaddr.Multiaddr) error
	SendRequestFn    func(ctx context.Context, p peer.ID, req []byte) (uint64, error)
	SendResponseFn   func(reply ReplyHandle, resp []byte) error
	BootstrapFn      func(ctx context.Context) (uint64, error)
	StartProvidingFn func(ctx context.Context, key []byte) (uint64, error)
	StopProvidingFn  func(key []byte) error
	PutRecordFn      func(ctx context.Context, key, value []byte, q Quorum) (uint64, error)
	GetRecordFn      func(ctx context.Context, key []byte) (uint64, error)
	RemoveRecordFn   func(key []byte) error
	GetProvidersFn   func(ctx context.Context, key []byte) (uint64, error)
	GetClosestFn     func(ctx context.Context, key []byte) (uint64, error)

	addressBook  AddressBook
	routingTable RoutingTable
	hasKnownPeer bool

	nextID uint64
	closed bool
}

var _ Engine = (*Fake)(nil)

// NewFake constructs a Fake with an unbuffered-safe, generously sized
// event channel (tests push events manually via Push).
func NewFake() *Fake {
	return &Fake{
		events:       make(chan Event, 256),
		addressBook:  fakeAddressBook{},
		routingTable: &fakeRoutingTable{},
	}
}

// RoutingTableCalls returns the peers passed to RoutingTable().AddAddresses
// so far, in call order, letting tests assert admission/non-admission.
func (f *Fake) RoutingTableCalls() []peer.ID {
	return f.routingTable.(*fakeRoutingTable).calls()
}

// Push enqueues ev onto the engine's event channel, as if the underlying
// transport had produced it.
func (f *Fake) Push(ev Event) { f.events <- ev }

// SetHasKnownPeers controls what HasKnownPeers reports.
func (f *Fake) SetHasKnownPeers(v bool) { f.hasKnownPeer = v }

func (f *Fake) nextQueryID() uint64 { return atomic.AddUint64(&f.nextID, 1) }

func (f *Fake) Connect(ctx context.Context, p peer.ID, addrs []multiaddr.Multiaddr) error {
	if f.ConnectFn != nil {
		return f.ConnectFn(ctx, p, addrs)
	}
	return nil
}

func (f *Fake) SendRequest(ctx context.Context, p peer.ID, req []byte) (uint64, error) {
	if f.SendRequestFn != nil {
		return f.SendRequestFn(ctx, p, req)
	}
	return f.nextQueryID(), nil
}

func (f *Fake) SendResponse(reply ReplyHandle, resp []byte) error {
	if f.SendResponseFn != nil {
		return f.SendResponseFn(reply, resp)
	}
	return reply.Send(resp)
}

func (f *Fake) Bootstrap(ctx context.Context) (uint64, error) {
	if f.BootstrapFn != nil {
		return f.BootstrapFn(ctx)
	}
	if !f.hasKnownPeer {
		return 0, ErrEmptyRoutingTable
	}
	return f.nextQueryID(), nil
}

func (f *Fake) StartProviding(ctx context.Context, key []byte) (uint64, error) {
	if f.StartProvidingFn != nil {
		return f.StartProvidingFn(ctx, key)
	}
	return f.nextQueryID(), nil
}

func (f *Fake) StopProviding(key []byte) error {
	if f.StopProvidingFn != nil {
		return f.StopProvidingFn(key)
	}
	return nil
}

func (f *Fake) PutRecord(ctx context.Context, key, value []byte, q Quorum) (uint64, error) {
	if f.PutRecordFn != nil {
		return f.PutRecordFn(ctx, key, value, q)
	}
	return f.nextQueryID(), nil
}

func (f *Fake) GetRecord(ctx context.Context, key []byte) (uint64, error) {
	if f.GetRecordFn != nil {
		return f.GetRecordFn(ctx, key)
	}
	return f.nextQueryID(), nil
}

func (f *Fake) RemoveRecord(key []byte) error {
	if f.RemoveRecordFn != nil {
		return f.RemoveRecordFn(key)
	}
	return nil
}

func (f *Fake) GetProviders(ctx context.Context, key []byte) (uint64, error) {
	if f.GetProvidersFn != nil {
		return f.GetProvidersFn(ctx, key)
	}
	return f.nextQueryID(), nil
}

func (f *Fake) GetClosestPeers(ctx context.Context, key []byte) (uint64, error) {
	if f.GetClosestFn != nil {
		return f.GetClosestFn(ctx, key)
	}
	return f.nextQueryID(), nil
}

func (f *Fake) AddressBook() AddressBook   { return f.addressBook }
func (f *Fake) RoutingTable() RoutingTable { return f.routingTable }
func (f *Fake) HasKnownPeers() bool        { return f.hasKnownPeer }

func (f *Fake) Events() <-chan Event { return f.events }

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

type fakeAddressBook struct{}

func (fakeAddressBook) AddAddrs(p peer.ID, addrs []multiaddr.Multiaddr, ttl AddrTTL) {}

// fakeRoutingTable records every AddAddresses call so tests can assert
// which peers were (and were not) admitted.
type fakeRoutingTable struct {
	mu       sync.Mutex
	admitted []peer.ID
}

func (r *fakeRoutingTable) AddAddresses(p peer.ID, addrs []multiaddr.Multiaddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admitted = append(r.admitted, p)
}

func (r *fakeRoutingTable) calls() []peer.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]peer.ID, len(r.admitted))
	copy(out, r.admitted)
	return out
}

// FakeReplyHandle is a ReplyHandle double recording whether Send/Discard
// was called and with what bytes.
type FakeReplyHandle struct {
	mu        sync.Mutex
	Sent      []byte
	SendErr   error
	SendCalls int
	Discarded bool
}

func (h *FakeReplyHandle) Send(resp []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.SendCalls++
	h.Sent = resp
	return h.SendErr
}

func (h *FakeReplyHandle) Discard() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Discarded = true
}
