package lane

import "errors"

var (
	ErrMalformedMessage = errors.New("malformed lane message")
	ErrStaleReceipt     = errors.New("delivery receipt is no longer valid")
	ErrUnknownLane      = errors.New("unknown lane")
	ErrTransportClosed  = errors.New("lane transport closed")
)
