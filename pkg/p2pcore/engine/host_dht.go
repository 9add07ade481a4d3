package engine

import (
	"context"
	"sync/atomic"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Each DHT operation below spawns a goroutine that drives the blocking,
// context-based go-libp2p-kad-dht call and synthesizes the progress/final
// engine.Event(s) the command handlers in pkg/p2pcore/core match on by
// query id. go-libp2p-kad-dht does not itself expose a query id or a
// progress stream for these calls, so the engine assigns one at the call
// site and reports a single terminal "Last: true" event — callers that
// want intermediate progress for, say, GetProviders still see one event
// per discovered batch because FindProvidersAsync is itself a channel of
// incremental results.

func (h *Host) newQueryID() uint64 {
	return atomic.AddUint64(&h.nextQID, 1)
}

// Bootstrap implements Engine.
func (h *Host) Bootstrap(ctx context.Context) (uint64, error) {
	if !h.HasKnownPeers() {
		return 0, ErrEmptyRoutingTable
	}
	id := h.newQueryID()
	go func() {
		err := h.dht.Bootstrap(ctx)
		h.emit(DHTBootstrapProgress{
			QueryID:          id,
			Last:             true,
			RemainingBuckets: len(h.dht.RoutingTable().ListPeers()),
			Err:              err,
		})
	}()
	return id, nil
}

// StartProviding implements Engine.
func (h *Host) StartProviding(ctx context.Context, key []byte) (uint64, error) {
	id := h.newQueryID()
	go func() {
		c, err := keyToCid(key)
		if err == nil {
			err = h.dht.Provide(ctx, c, true)
		}
		h.emit(DHTPutProgress{QueryID: id, Last: true, Stats: QueryStats{PeersContacted: 1, RoundsTaken: 1}, Err: err})
	}()
	return id, nil
}

// StopProviding implements Engine. Stopping an advertisement the local
// node never made is a no-op, matching the underlying provider store's
// idempotent delete semantics.
func (h *Host) StopProviding(key []byte) error {
	c, err := keyToCid(key)
	if err != nil {
		return err
	}
	h.dht.ProviderStore().RemoveProvider(context.Background(), c.Hash(), h.h.ID())
	return nil
}

// PutRecord implements Engine.
func (h *Host) PutRecord(ctx context.Context, key, value []byte, quorum Quorum) (uint64, error) {
	id := h.newQueryID()
	go func() {
		err := h.dht.PutValue(ctx, string(key), value)
		h.emit(DHTPutProgress{QueryID: id, Last: true, Stats: QueryStats{PeersContacted: replicationFactor(quorum), RoundsTaken: 1}, Err: err})
	}()
	return id, nil
}

// GetRecord implements Engine.
func (h *Host) GetRecord(ctx context.Context, key []byte) (uint64, error) {
	id := h.newQueryID()
	go func() {
		val, err := h.dht.GetValue(ctx, string(key))
		if err != nil {
			h.emit(DHTGetRecordProgress{QueryID: id, Last: true, Err: err})
			return
		}
		h.emit(DHTGetRecordProgress{QueryID: id, Last: true, Record: &Record{Key: key, Value: val}})
	}()
	return id, nil
}

// RemoveRecord implements Engine. The underlying DHT has no explicit
// remove primitive (records expire via republication TTL); removal is
// realized by dropping the cached local record so this node stops
// republishing it.
func (h *Host) RemoveRecord(key []byte) error {
	return h.dht.Datastore().Delete(context.Background(), dsKey(key))
}

// GetProviders implements Engine.
func (h *Host) GetProviders(ctx context.Context, key []byte) (uint64, error) {
	id := h.newQueryID()
	go func() {
		c, err := keyToCid(key)
		if err != nil {
			h.emit(DHTGetProvidersProgress{QueryID: id, Last: true, Err: err})
			return
		}
		var stats QueryStats
		seen := make(map[peer.ID]struct{})
		var all []peer.ID
		for info := range h.dht.FindProvidersAsync(ctx, c, 0) {
			stats.PeersContacted++
			if _, ok := seen[info.ID]; ok {
				continue
			}
			seen[info.ID] = struct{}{}
			all = append(all, info.ID)
			h.emit(DHTGetProvidersProgress{QueryID: id, Peers: []peer.ID{info.ID}, Stats: stats})
			// Each event carries only the increment since the previous
			// one; the handler merges them into the cumulative total.
			stats = QueryStats{}
		}
		h.emit(DHTGetProvidersProgress{QueryID: id, Last: true, Peers: all, Stats: stats})
	}()
	return id, nil
}

// GetClosestPeers implements Engine.
func (h *Host) GetClosestPeers(ctx context.Context, key []byte) (uint64, error) {
	id := h.newQueryID()
	go func() {
		peers, err := h.dht.GetClosestPeers(ctx, string(key))
		h.emit(DHTGetClosestPeersProgress{QueryID: id, Last: true, Peers: peers, Err: err})
	}()
	return id, nil
}

func replicationFactor(q Quorum) int {
	switch q.Kind() {
	case QuorumOne:
		return 1
	case QuorumExact:
		return q.N()
	default:
		return 0 // Majority/All: the DHT's own default replication applies
	}
}
