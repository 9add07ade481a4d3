package p2pcore

import (
	"context"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/core"
	"github.com/nodeforge/p2pcore/pkg/p2pcore/definition"
	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

// Client is the application-facing handle onto a running node: every
// method builds a Handler, submits it to the Event Loop via Submit, and
// blocks on the resulting Future until ctx is cancelled or the command
// completes.
type Client struct {
	loop     *core.Loop
	registry *core.ReplyRegistry
	eng      *engine.Host
}

// Start constructs the network engine, the Pending Reply Registry and
// the Event Loop described by cfg, launches the loop's goroutine and the
// registry's eviction goroutine, and returns a Client plus the channel
// the application should drain for NodeEvents. The returned channel is
// closed only when ctx is cancelled or the engine's event stream ends.
func Start(ctx context.Context, kp crypto.PrivKey, cfg Config) (*Client, <-chan NodeEvent, error) {
	log := definition.DiscardLogger()

	h, err := engine.NewHost(ctx, engine.HostConfig{
		Keypair:           kp,
		ProtocolVersion:   cfg.ProtocolVersion,
		AgentVersion:      cfg.AgentVersion,
		ListenAddresses:   cfg.ListenAddresses,
		BootstrapPeers:    cfg.BootstrapPeers,
		IdleTimeout:       cfg.IdleConnectionTimeout,
		EnableMDNS:        cfg.EnableMDNS,
		EnableRelayClient: cfg.EnableRelayClient,
		EnableDCUtR:       cfg.EnableDCUtR,
		EnableAutoNAT:     cfg.EnableAutoNAT,
		KadServerMode:     cfg.KadServerMode,
		MaxRequestSize:    cfg.MaxRequestSize,
		MaxResponseSize:   cfg.MaxResponseSize,
		Log:               log,
	})
	if err != nil {
		return nil, nil, err
	}

	for _, bp := range cfg.BootstrapPeers {
		_ = h.Connect(ctx, bp.ID, bp.Addrs)
	}

	registry := core.NewReplyRegistry(cfg.PendingReplyTTL)
	loop := core.NewLoop(h, log, cfg.ProtocolVersion, registry, cfg.CommandQueueSize, cfg.NodeEventBuffer)

	go loop.Run(ctx)
	go registry.RunEviction(ctx)

	return &Client{loop: loop, registry: registry, eng: h}, loop.NodeEvents(), nil
}

// Dial connects to p, optionally via pre-known addrs, and blocks until
// the connection is established or ctx is cancelled.
func (c *Client) Dial(ctx context.Context, p peer.ID, addrs ...multiaddr.Multiaddr) error {
	_, err := core.Submit[struct{}](c.loop, &core.DialHandler{Peer: p, Addrs: addrs}).Await(ctx)
	return err
}

// SendRequest opens a fresh substream to p, sends req, and returns the
// peer's response.
func (c *Client) SendRequest(ctx context.Context, p peer.ID, req []byte) ([]byte, error) {
	return core.Submit[[]byte](c.loop, &core.SendRequestHandler{Peer: p, Request: req}).Await(ctx)
}

// SendResponse answers the inbound request parked under slotID with resp.
func (c *Client) SendResponse(ctx context.Context, slotID uint64, resp []byte) error {
	_, err := core.Submit[struct{}](c.loop, &core.SendResponseHandler{
		SlotID:   slotID,
		Response: resp,
		Registry: c.registry,
	}).Await(ctx)
	return err
}

// Bootstrap joins the DHT using the configured bootstrap peers.
func (c *Client) Bootstrap(ctx context.Context) (BootstrapResult, error) {
	return core.Submit[BootstrapResult](c.loop, &core.BootstrapHandler{}).Await(ctx)
}

// StartProviding announces this node as a provider of key.
func (c *Client) StartProviding(ctx context.Context, key []byte) (QueryStats, error) {
	return core.Submit[QueryStats](c.loop, &core.StartProvideHandler{Key: key}).Await(ctx)
}

// StopProviding stops announcing this node as a provider of key. A no-op
// if this node was never providing key.
func (c *Client) StopProviding(ctx context.Context, key []byte) error {
	_, err := core.Submit[struct{}](c.loop, &core.StopProvideHandler{Key: key}).Await(ctx)
	return err
}

// GetProviders queries the DHT for the set of peers providing key.
func (c *Client) GetProviders(ctx context.Context, key []byte) (GetProvidersResult, error) {
	return core.Submit[GetProvidersResult](c.loop, &core.GetProvidersHandler{Key: key}).Await(ctx)
}

// PutRecord stores value under key in the DHT. q is not passed to the DHT
// write, which uses the DHT's own replication; it only sets PeersContacted
// in the returned QueryStats (1 for One, n for Exact, 0 for Majority and
// All).
func (c *Client) PutRecord(ctx context.Context, key, value []byte, q Quorum) (QueryStats, error) {
	return core.Submit[QueryStats](c.loop, &core.PutRecordHandler{Key: key, Value: value, Quorum: q}).Await(ctx)
}

// GetRecord retrieves the value stored under key from the DHT.
func (c *Client) GetRecord(ctx context.Context, key []byte) (GetRecordResult, error) {
	return core.Submit[GetRecordResult](c.loop, &core.GetRecordHandler{Key: key}).Await(ctx)
}

// RemoveRecord removes the locally cached record for key so this node
// stops republishing it.
func (c *Client) RemoveRecord(ctx context.Context, key []byte) error {
	_, err := core.Submit[struct{}](c.loop, &core.RemoveRecordHandler{Key: key}).Await(ctx)
	return err
}

// GetClosestPeers returns the peers closest to key in the DHT's keyspace.
func (c *Client) GetClosestPeers(ctx context.Context, key []byte) (GetClosestPeersResult, error) {
	return core.Submit[GetClosestPeersResult](c.loop, &core.GetClosestPeersHandler{Key: key}).Await(ctx)
}

// Close shuts down the underlying engine, terminating the event loop's
// Run (its events channel closes) and releasing every open connection.
func (c *Client) Close() error {
	return c.eng.Close()
}
