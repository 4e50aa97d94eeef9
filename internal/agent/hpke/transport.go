package hpke

import "context"

// Transport sends an already-enveloped request body to targetDID and
// returns the raw response body. Implementations carry the actual wire
// transport (HTTP, in-process, a message bus); this package only needs
// request/response bytes.
type Transport interface {
	Send(ctx context.Context, targetDID string, body []byte) ([]byte, error)
}
