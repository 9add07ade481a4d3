package engine

import (
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p/core/network"
)

// readFramed reads a single request/response body from s: the peer writes
// all bytes and closes its write side, we read to end-of-stream. limit
// bounds the number of bytes read; exceeding it is an error rather than a
// silent truncation.
func readFramed(s network.Stream, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = 1 << 20 // 1 MiB default per spec §6
	}
	lr := io.LimitReader(s, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("reqres: reading body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("reqres: message exceeds %d byte limit", limit)
	}
	return data, nil
}

// streamReply is the concrete ReplyHandle backing an InboundRequest: a
// single libp2p stream, answerable exactly once.
type streamReply struct {
	stream network.Stream
}

var _ ReplyHandle = (*streamReply)(nil)

func (r *streamReply) Send(response []byte) error {
	defer r.stream.Close()
	if _, err := r.stream.Write(response); err != nil {
		r.stream.Reset()
		return fmt.Errorf("reqres: writing response: %w", err)
	}
	return r.stream.CloseWrite()
}

func (r *streamReply) Discard() {
	r.stream.Reset()
}
