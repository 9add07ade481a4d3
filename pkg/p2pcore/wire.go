package p2pcore

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/libp2p/go-libp2p/core/peer"
)

// SendRequestCBOR is a convenience wrapper over Client.SendRequest for
// callers who want typed request/response values instead of raw bytes.
// It CBOR-encodes req, sends it as the substream body exactly as spec §6
// describes (one message per substream, framed by CloseWrite/EOF, not by
// a length prefix), and CBOR-decodes the peer's response into a value of
// type Resp.
func SendRequestCBOR[Req, Resp any](ctx context.Context, c *Client, p peer.ID, req Req) (Resp, error) {
	var zero Resp
	body, err := cbor.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("p2pcore: encoding request: %w", err)
	}
	respBytes, err := c.SendRequest(ctx, p, body)
	if err != nil {
		return zero, err
	}
	var resp Resp
	if err := cbor.Unmarshal(respBytes, &resp); err != nil {
		return zero, fmt.Errorf("p2pcore: decoding response: %w", err)
	}
	return resp, nil
}

// DecodeInboundRequest CBOR-decodes the raw bytes carried by an
// InboundRequestEvent into a value of type Req.
func DecodeInboundRequest[Req any](raw []byte) (Req, error) {
	var v Req
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("p2pcore: decoding inbound request: %w", err)
	}
	return v, nil
}

// SendResponseCBOR CBOR-encodes resp and answers the inbound request
// parked under slotID, the response-side counterpart to
// SendRequestCBOR/DecodeInboundRequest.
func SendResponseCBOR[Resp any](ctx context.Context, c *Client, slotID uint64, resp Resp) error {
	body, err := cbor.Marshal(resp)
	if err != nil {
		return fmt.Errorf("p2pcore: encoding response: %w", err)
	}
	return c.SendResponse(ctx, slotID, body)
}
