package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	connmgr "github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/protocol/holepunch"
	"github.com/libp2p/go-libp2p/p2p/protocol/ping"
	"github.com/multiformats/go-multiaddr"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/definition"
)

// connManagerLowWater/connManagerHighWater size the watermarks the
// connection manager prunes against; idle_connection_timeout governs the
// grace period a connection is protected from that pruning, not the
// watermark count itself.
const (
	connManagerLowWater  = 128
	connManagerHighWater = 256

	pingInterval = 30 * time.Second
	pingTimeout  = 10 * time.Second
)

func init() {
	// go-libp2p's subsystems are noisy by default; the core logs through
	// definition.Logger instead, so quiet every go-log subsystem except
	// genuine errors.
	logging.SetAllLoggers(logging.LevelError)
}

// ReqResProtocolID is the protocol.ID used for request/response streams.
const ReqResProtocolID = protocol.ID("/p2pcore/reqres/1.0.0")

// HostConfig carries the construction-time options a Host needs.
type HostConfig struct {
	Keypair            crypto.PrivKey
	ProtocolVersion    string
	AgentVersion       string
	ListenAddresses    []multiaddr.Multiaddr
	BootstrapPeers     []peer.AddrInfo
	IdleTimeout        time.Duration
	EnableMDNS         bool
	EnableRelayClient  bool
	EnableDCUtR        bool
	EnableAutoNAT      bool
	KadServerMode      bool
	MaxRequestSize     int64
	MaxResponseSize    int64
	Log                definition.Logger
}

// Host is the concrete, go-libp2p-backed Engine implementation.
type Host struct {
	h   host.Host
	dht *dht.IpfsDHT
	cfg HostConfig
	log definition.Logger

	events  chan Event
	nextReq uint64
	nextQID uint64

	mdnsService mdns.Service
}

var _ Engine = (*Host)(nil)

// NewHost builds and starts a Host: it constructs the libp2p host, wires
// identify/ping/mDNS/AutoNAT/DCUtR/relay per cfg, registers the
// request/response stream handler, constructs the DHT, and begins
// listening. The returned Host's Events() channel starts delivering
// immediately; the caller (the event loop) must begin draining it.
func NewHost(ctx context.Context, cfg HostConfig) (*Host, error) {
	events := make(chan Event, 256)

	h := &Host{
		cfg:    cfg,
		log:    cfg.Log,
		events: events,
	}

	opts := []libp2p.Option{
		libp2p.Identity(cfg.Keypair),
		libp2p.ListenAddrs(cfg.ListenAddresses...),
		libp2p.UserAgent(cfg.AgentVersion),
		libp2p.ProtocolVersion(cfg.ProtocolVersion),
	}
	if cfg.EnableRelayClient {
		opts = append(opts, libp2p.EnableRelay(), libp2p.EnableAutoRelayWithStaticRelays(cfg.BootstrapPeers))
	}
	if cfg.EnableDCUtR {
		opts = append(opts, libp2p.EnableHolePunching(holepunch.WithTracer(&holePunchTracer{h: h})))
	}
	if cfg.EnableAutoNAT {
		opts = append(opts, libp2p.EnableNATService())
	}
	if cfg.IdleTimeout > 0 {
		cm, err := connmgr.NewConnManager(connManagerLowWater, connManagerHighWater, connmgr.WithGracePeriod(cfg.IdleTimeout))
		if err != nil {
			return nil, fmt.Errorf("engine: constructing connection manager: %w", err)
		}
		opts = append(opts, libp2p.ConnectionManager(cm))
	}

	lh, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("engine: constructing host: %w", err)
	}
	h.h = lh

	h.h.SetStreamHandler(ReqResProtocolID, h.handleIncomingStream)

	mode := dht.ModeAuto
	if cfg.KadServerMode {
		mode = dht.ModeServer
	}
	kad, err := dht.New(ctx, lh, dht.Mode(mode), dht.ProtocolPrefix(protocol.ID("/p2pcore")))
	if err != nil {
		lh.Close()
		return nil, fmt.Errorf("engine: constructing dht: %w", err)
	}
	h.dht = kad

	h.subscribeHostEvents(ctx)
	go h.runPingLoop(ctx, newPingClient(lh))

	if cfg.EnableMDNS {
		svc := mdns.NewMdnsService(lh, "p2pcore", &mdnsNotifee{h: h})
		if err := svc.Start(); err != nil {
			h.log.Warnf("mdns start failed: %v", err)
		} else {
			h.mdnsService = svc
		}
	}

	for _, a := range lh.Addrs() {
		h.emit(NewListenAddr{Addr: a})
	}

	return h, nil
}

// subscribeHostEvents bridges the host's libp2p event bus (connectedness
// changes, identify completion, NAT status) into the single Engine event
// channel.
func (h *Host) subscribeHostEvents(ctx context.Context) {
	sub, err := h.h.EventBus().Subscribe([]interface{}{
		new(event.EvtPeerConnectednessChanged),
		new(event.EvtPeerIdentificationCompleted),
		new(event.EvtLocalReachabilityChanged),
	})
	if err != nil {
		h.log.Warnf("event bus subscribe failed: %v", err)
		return
	}
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub.Out():
				if !ok {
					return
				}
				h.translateBusEvent(raw)
			}
		}
	}()
}

func (h *Host) translateBusEvent(raw interface{}) {
	switch ev := raw.(type) {
	case event.EvtPeerConnectednessChanged:
		n := len(h.h.Network().ConnsToPeer(ev.Peer))
		if ev.Connectedness == network.Connected {
			h.emit(ConnectionEstablished{Peer: ev.Peer, NumEstablished: n})
		} else {
			h.emit(ConnectionClosed{Peer: ev.Peer, NumEstablished: n})
		}
	case event.EvtPeerIdentificationCompleted:
		h.emit(IdentifyReceived{
			Peer:            ev.Peer,
			AgentVersion:    ev.AgentVersion,
			ProtocolVersion: ev.ProtocolVersion,
			ListenAddrs:     ev.ListenAddrs,
		})
	case event.EvtLocalReachabilityChanged:
		h.emit(NATStatusChanged{Status: ev.Reachability.String()})
	}
}

// holePunchTracer bridges the holepunch service's tracer callback into the
// engine's event channel the same way subscribeHostEvents bridges the
// libp2p event bus: both are push sources feeding the single Events()
// stream.
type holePunchTracer struct {
	h *Host
}

func (t *holePunchTracer) Trace(evt *holepunch.Event) {
	end, ok := evt.Evt.(*holepunch.EndHolePunchEvt)
	if !ok {
		return
	}
	if end.Success {
		t.h.emit(DCUtRSuccess{Peer: evt.Peer})
	} else {
		t.h.emit(DCUtRFailure{Peer: evt.Peer, Err: errors.New(end.Error)})
	}
}

func (h *Host) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
		h.log.Warnf("engine event channel full, dropping %T", ev)
	}
}

// Events implements Engine.
func (h *Host) Events() <-chan Event { return h.events }

// Connect implements Engine.
func (h *Host) Connect(ctx context.Context, p peer.ID, addrs []multiaddr.Multiaddr) error {
	h.h.Peerstore().AddAddrs(p, addrs, peerstore.TempAddrTTL)
	info := peer.AddrInfo{ID: p, Addrs: addrs}
	go func() {
		if err := h.h.Connect(ctx, info); err != nil {
			h.emit(OutgoingConnectionError{Peer: p, Err: err})
		}
	}()
	return nil
}

// SendRequest implements Engine.
func (h *Host) SendRequest(ctx context.Context, p peer.ID, req []byte) (uint64, error) {
	id := atomic.AddUint64(&h.nextReq, 1)
	go h.doSendRequest(ctx, id, p, req)
	return id, nil
}

func (h *Host) doSendRequest(ctx context.Context, id uint64, p peer.ID, req []byte) {
	s, err := h.h.NewStream(ctx, p, ReqResProtocolID)
	if err != nil {
		h.emit(OutboundFailure{Peer: p, RequestID: id, Err: err})
		return
	}
	defer s.Close()

	if _, err := s.Write(req); err != nil {
		h.emit(OutboundFailure{Peer: p, RequestID: id, Err: err})
		return
	}
	if err := s.CloseWrite(); err != nil {
		h.emit(OutboundFailure{Peer: p, RequestID: id, Err: err})
		return
	}

	resp, err := readFramed(s, h.cfg.MaxResponseSize)
	if err != nil {
		h.emit(OutboundFailure{Peer: p, RequestID: id, Err: err})
		return
	}
	h.emit(MessageResponse{Peer: p, RequestID: id, Response: resp})
}

// SendResponse implements Engine.
func (h *Host) SendResponse(reply ReplyHandle, resp []byte) error {
	return reply.Send(resp)
}

func (h *Host) handleIncomingStream(s network.Stream) {
	req, err := readFramed(s, h.cfg.MaxRequestSize)
	if err != nil {
		h.log.Debugf("reqres: reading inbound request: %v", err)
		s.Reset()
		return
	}
	h.emit(InboundRequest{
		Peer:    s.Conn().RemotePeer(),
		Request: req,
		Reply:   &streamReply{stream: s},
	})
}

// AddressBook implements Engine.
func (h *Host) AddressBook() AddressBook { return peerstoreAddressBook{ps: h.h.Peerstore()} }

// RoutingTable implements Engine.
func (h *Host) RoutingTable() RoutingTable { return dhtRoutingTable{dht: h.dht} }

// HasKnownPeers implements Engine.
func (h *Host) HasKnownPeers() bool {
	return len(h.dht.RoutingTable().ListPeers()) > 0 || len(h.cfg.BootstrapPeers) > 0
}

// Close implements Engine.
func (h *Host) Close() error {
	if h.mdnsService != nil {
		h.mdnsService.Close()
	}
	if h.dht != nil {
		h.dht.Close()
	}
	close(h.events)
	return h.h.Close()
}

// pingClient wraps the ping protocol service; identify is wired in
// automatically by libp2p.New.
type pingClient struct {
	svc *ping.PingService
}

func newPingClient(h host.Host) *pingClient {
	return &pingClient{svc: ping.NewPingService(h)}
}

// runPingLoop pings every currently connected peer once per pingInterval
// until ctx is cancelled, the same lifetime as subscribeHostEvents' bridge
// goroutine. Successful round trips are reported as PingSuccess; failures
// are only logged, since the Node Event taxonomy has no ping-failure kind.
func (h *Host) runPingLoop(ctx context.Context, pc *pingClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range h.h.Network().Peers() {
				go h.pingPeer(ctx, pc, p)
			}
		}
	}
}

func (h *Host) pingPeer(ctx context.Context, pc *pingClient, p peer.ID) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	select {
	case res := <-pc.svc.Ping(pingCtx, p):
		if res.Error == nil {
			h.emit(PingSuccess{Peer: p, RTT: res.RTT})
		} else {
			h.log.Debugf("ping to %s failed: %v", p, res.Error)
		}
	case <-pingCtx.Done():
	}
}
