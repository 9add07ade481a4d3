package core

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/nodeforge/p2pcore/pkg/p2pcore/engine"
)

// BootstrapResult is returned by the DHT-Bootstrap command.
type BootstrapResult struct {
	RemainingBuckets int
}

// QueryStats is the cumulative statistics type shared by the multi-step
// DHT commands.
type QueryStats = engine.QueryStats

// GetProvidersResult is returned by the DHT-Get-Providers command.
type GetProvidersResult struct {
	Peers []peer.ID
	Stats QueryStats
}

// GetRecordResult is returned by the DHT-Get-Record command.
type GetRecordResult struct {
	Record engine.Record
}

// GetClosestPeersResult is returned by the DHT-Get-Closest-Peers command.
type GetClosestPeersResult struct {
	Peers []peer.ID
}

// BootstrapHandler implements DHT-Bootstrap.
type BootstrapHandler struct {
	queryID uint64
}

var _ Handler[BootstrapResult] = (*BootstrapHandler)(nil)

func (h *BootstrapHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[BootstrapResult]) {
	id, err := eng.Bootstrap(ctx)
	if err != nil {
		cell.Finish(BootstrapResult{}, ErrDHTNoKnownPeersErr)
		return
	}
	h.queryID = id
}

func (h *BootstrapHandler) OnEvent(ev engine.Event, cell *ResultCell[BootstrapResult]) (bool, *engine.Event) {
	e, ok := ev.(engine.DHTBootstrapProgress)
	if !ok || e.QueryID != h.queryID {
		return true, &ev
	}
	if !e.Last {
		return true, nil
	}
	if e.Err != nil {
		cell.Finish(BootstrapResult{}, newDHTError(DHTOpBootstrap, "", e.Err))
		return false, nil
	}
	cell.Finish(BootstrapResult{RemainingBuckets: e.RemainingBuckets}, nil)
	return false, nil
}

// StartProvideHandler implements DHT-Start-Provide.
type StartProvideHandler struct {
	Key     []byte
	queryID uint64
	stats   QueryStats
}

var _ Handler[QueryStats] = (*StartProvideHandler)(nil)

func (h *StartProvideHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[QueryStats]) {
	id, err := eng.StartProviding(ctx, h.Key)
	if err != nil {
		cell.Finish(QueryStats{}, newDHTError(DHTOpStartProviding, "", err))
		return
	}
	h.queryID = id
}

func (h *StartProvideHandler) OnEvent(ev engine.Event, cell *ResultCell[QueryStats]) (bool, *engine.Event) {
	e, ok := ev.(engine.DHTPutProgress)
	if !ok || e.QueryID != h.queryID {
		return true, &ev
	}
	h.stats.Merge(e.Stats)
	if !e.Last {
		return true, nil
	}
	if e.Err != nil {
		cell.Finish(QueryStats{}, newDHTError(DHTOpStartProviding, "", e.Err))
		return false, nil
	}
	cell.Finish(h.stats, nil)
	return false, nil
}

// StopProvideHandler implements DHT-Stop-Provide: a synchronous local
// operation, finished immediately in Start. Stopping provision of a key
// never provided is a no-op (spec §8 invariant 10).
type StopProvideHandler struct {
	Key []byte
}

var _ Handler[struct{}] = (*StopProvideHandler)(nil)

func (h *StopProvideHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[struct{}]) {
	err := eng.StopProviding(h.Key)
	if err != nil {
		cell.Finish(struct{}{}, newDHTError(DHTOpStartProviding, "stop", err))
		return
	}
	cell.Finish(struct{}{}, nil)
}

func (h *StopProvideHandler) OnEvent(ev engine.Event, cell *ResultCell[struct{}]) (bool, *engine.Event) {
	return false, &ev
}

// PutRecordHandler implements DHT-Put-Record.
type PutRecordHandler struct {
	Key, Value []byte
	Quorum     engine.Quorum

	queryID uint64
	stats   QueryStats
}

var _ Handler[QueryStats] = (*PutRecordHandler)(nil)

func (h *PutRecordHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[QueryStats]) {
	id, err := eng.PutRecord(ctx, h.Key, h.Value, h.Quorum)
	if err != nil {
		cell.Finish(QueryStats{}, newDHTError(DHTOpPutRecord, "", err))
		return
	}
	h.queryID = id
}

func (h *PutRecordHandler) OnEvent(ev engine.Event, cell *ResultCell[QueryStats]) (bool, *engine.Event) {
	e, ok := ev.(engine.DHTPutProgress)
	if !ok || e.QueryID != h.queryID {
		return true, &ev
	}
	h.stats.Merge(e.Stats)
	if !e.Last {
		return true, nil
	}
	if e.Err != nil {
		cell.Finish(QueryStats{}, newDHTError(DHTOpPutRecord, "", e.Err))
		return false, nil
	}
	cell.Finish(h.stats, nil)
	return false, nil
}

// GetRecordHandler implements DHT-Get-Record: retains the first record
// observed and finishes on the last step with that record. If none
// arrived, it finishes with a get-record query failure when the last step
// carries an error, and with dht_not_found otherwise.
type GetRecordHandler struct {
	Key []byte

	queryID uint64
	found   *engine.Record
}

var _ Handler[GetRecordResult] = (*GetRecordHandler)(nil)

func (h *GetRecordHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[GetRecordResult]) {
	id, err := eng.GetRecord(ctx, h.Key)
	if err != nil {
		cell.Finish(GetRecordResult{}, newDHTError(DHTOpGetRecord, "", err))
		return
	}
	h.queryID = id
}

func (h *GetRecordHandler) OnEvent(ev engine.Event, cell *ResultCell[GetRecordResult]) (bool, *engine.Event) {
	e, ok := ev.(engine.DHTGetRecordProgress)
	if !ok || e.QueryID != h.queryID {
		return true, &ev
	}
	if h.found == nil && e.Record != nil {
		h.found = e.Record
	}
	if !e.Last {
		return true, nil
	}
	if h.found == nil {
		if e.Err != nil {
			cell.Finish(GetRecordResult{}, newDHTError(DHTOpGetRecord, "", e.Err))
		} else {
			cell.Finish(GetRecordResult{}, ErrDHTNotFoundErr)
		}
		return false, nil
	}
	cell.Finish(GetRecordResult{Record: *h.found}, nil)
	return false, nil
}

// RemoveRecordHandler implements DHT-Remove-Record: a synchronous local
// operation, finished immediately in Start.
type RemoveRecordHandler struct {
	Key []byte
}

var _ Handler[struct{}] = (*RemoveRecordHandler)(nil)

func (h *RemoveRecordHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[struct{}]) {
	if err := eng.RemoveRecord(h.Key); err != nil {
		cell.Finish(struct{}{}, newDHTError(DHTOpGetRecord, "remove", err))
		return
	}
	cell.Finish(struct{}{}, nil)
}

func (h *RemoveRecordHandler) OnEvent(ev engine.Event, cell *ResultCell[struct{}]) (bool, *engine.Event) {
	return false, &ev
}

// GetProvidersHandler implements DHT-Get-Providers: accumulates peer ids
// across progress events, deduplicated, finishing on the last step.
type GetProvidersHandler struct {
	Key []byte

	queryID uint64
	seen    map[peer.ID]struct{}
	peers   []peer.ID
	stats   QueryStats
}

var _ Handler[GetProvidersResult] = (*GetProvidersHandler)(nil)

func (h *GetProvidersHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[GetProvidersResult]) {
	id, err := eng.GetProviders(ctx, h.Key)
	if err != nil {
		cell.Finish(GetProvidersResult{}, newDHTError(DHTOpGetProviders, "", err))
		return
	}
	h.queryID = id
	h.seen = make(map[peer.ID]struct{})
}

func (h *GetProvidersHandler) OnEvent(ev engine.Event, cell *ResultCell[GetProvidersResult]) (bool, *engine.Event) {
	e, ok := ev.(engine.DHTGetProvidersProgress)
	if !ok || e.QueryID != h.queryID {
		return true, &ev
	}
	h.stats.Merge(e.Stats)
	for _, p := range e.Peers {
		if _, dup := h.seen[p]; dup {
			continue
		}
		h.seen[p] = struct{}{}
		h.peers = append(h.peers, p)
	}
	if !e.Last {
		return true, nil
	}
	if e.Err != nil {
		cell.Finish(GetProvidersResult{}, newDHTError(DHTOpGetProviders, "", e.Err))
		return false, nil
	}
	cell.Finish(GetProvidersResult{Peers: h.peers, Stats: h.stats}, nil)
	return false, nil
}

// GetClosestPeersHandler implements DHT-Get-Closest-Peers: accumulates
// peer ids across progress events, finishing on the last step.
type GetClosestPeersHandler struct {
	Key []byte

	queryID uint64
	peers   []peer.ID
}

var _ Handler[GetClosestPeersResult] = (*GetClosestPeersHandler)(nil)

func (h *GetClosestPeersHandler) Start(ctx context.Context, eng engine.Engine, cell *ResultCell[GetClosestPeersResult]) {
	id, err := eng.GetClosestPeers(ctx, h.Key)
	if err != nil {
		cell.Finish(GetClosestPeersResult{}, newDHTError(DHTOpGetClosestPeers, "", err))
		return
	}
	h.queryID = id
}

func (h *GetClosestPeersHandler) OnEvent(ev engine.Event, cell *ResultCell[GetClosestPeersResult]) (bool, *engine.Event) {
	e, ok := ev.(engine.DHTGetClosestPeersProgress)
	if !ok || e.QueryID != h.queryID {
		return true, &ev
	}
	h.peers = append(h.peers, e.Peers...)
	if !e.Last {
		return true, nil
	}
	if e.Err != nil {
		cell.Finish(GetClosestPeersResult{}, newDHTError(DHTOpGetClosestPeers, "", e.Err))
		return false, nil
	}
	cell.Finish(GetClosestPeersResult{Peers: h.peers}, nil)
	return false, nil
}
