package core

import "fmt"

// ErrorKind classifies a command failure. Grounded on bassosimone-nop's
// ErrClassifier pattern (a small named-category abstraction over errors),
// generalized here into a first-class error type so callers can branch
// with errors.Is instead of string-matching a classifier's output.
type ErrorKind int

const (
	// ErrChannelClosed: command submission after the loop has exited.
	ErrChannelClosed ErrorKind = iota
	// ErrDialFailed: outgoing-connection-error for a pending dial.
	ErrDialFailed
	// ErrRequestFailed: outbound failure on a pending send-request.
	ErrRequestFailed
	// ErrSlotExpired: send_response(slot_id) where the slot is absent.
	ErrSlotExpired
	// ErrDHTNoKnownPeers: bootstrap invoked with an empty routing table.
	ErrDHTNoKnownPeers
	// ErrDHTQueryFailed: a DHT operation failed at the engine level.
	ErrDHTQueryFailed
	// ErrDHTNotFound: get-record completed without a record.
	ErrDHTNotFound
	// ErrEngine: catch-all for engine-level refusals.
	ErrEngine
)

func (k ErrorKind) String() string {
	switch k {
	case ErrChannelClosed:
		return "channel_closed"
	case ErrDialFailed:
		return "dial_failed"
	case ErrRequestFailed:
		return "request_failed"
	case ErrSlotExpired:
		return "slot_expired"
	case ErrDHTNoKnownPeers:
		return "dht_no_known_peers"
	case ErrDHTQueryFailed:
		return "dht_query_failed"
	case ErrDHTNotFound:
		return "dht_not_found"
	case ErrEngine:
		return "engine"
	default:
		return "unknown"
	}
}

// DHTOpKind distinguishes which DHT operation produced an ErrDHTQueryFailed,
// per spec §7's "kind distinguishes bootstrap, put-record, get-record,
// get-providers, get-closest-peers, start-providing".
type DHTOpKind int

const (
	DHTOpBootstrap DHTOpKind = iota
	DHTOpPutRecord
	DHTOpGetRecord
	DHTOpGetProviders
	DHTOpGetClosestPeers
	DHTOpStartProviding
)

func (k DHTOpKind) String() string {
	switch k {
	case DHTOpBootstrap:
		return "bootstrap"
	case DHTOpPutRecord:
		return "put-record"
	case DHTOpGetRecord:
		return "get-record"
	case DHTOpGetProviders:
		return "get-providers"
	case DHTOpGetClosestPeers:
		return "get-closest-peers"
	case DHTOpStartProviding:
		return "start-providing"
	default:
		return "unknown"
	}
}

// Error is the typed failure carried in every command's completion.
type Error struct {
	Kind   ErrorKind
	DHTOp  DHTOpKind // only meaningful when Kind == ErrDHTQueryFailed
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Kind == ErrDHTQueryFailed {
		if e.Detail != "" {
			return fmt.Sprintf("%s(%s): %s", e.Kind, e.DHTOp, e.Detail)
		}
		return fmt.Sprintf("%s(%s)", e.Kind, e.DHTOp)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, core.ErrSlotExpiredErr) style checks against
// the sentinel-like helpers below.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newError(kind ErrorKind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func newDHTError(op DHTOpKind, detail string, cause error) *Error {
	return &Error{Kind: ErrDHTQueryFailed, DHTOp: op, Detail: detail, Cause: cause}
}

// Sentinel kind markers usable with errors.Is(err, core.ErrSlotExpiredErr).
var (
	ErrChannelClosedErr   = &Error{Kind: ErrChannelClosed}
	ErrSlotExpiredErr     = &Error{Kind: ErrSlotExpired}
	ErrDHTNoKnownPeersErr = &Error{Kind: ErrDHTNoKnownPeers}
	ErrDHTNotFoundErr     = &Error{Kind: ErrDHTNotFound}
)
