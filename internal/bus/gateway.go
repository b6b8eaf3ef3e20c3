// Package bus defines the communications gateway the Part 1 steps talk to
// and provides an in-process simulator of a vehicle network.
package bus

import (
	"context"
	"errors"
	"time"

	"example.com/obdgate/internal/j1939"
)

// ErrTimeout is returned by gateways that treat silence as an error. The
// request methods of Gateway report silence as an empty result instead.
var ErrTimeout = errors.New("bus: request timed out")

// DefaultDSTimeout bounds a destination specific request.
const DefaultDSTimeout = 200 * time.Millisecond

// ImpostorFunc receives frames seen with the tool's own source address.
type ImpostorFunc func(frame j1939.Packet)

// Gateway issues diagnostic requests on behalf of the service tool.
// Protocol level non-response (NACK, BUSY, silence) and replies that do
// not decode are returned in the result; an error means the bus itself
// failed.
type Gateway interface {
	SourceAddress() int
	RequestGlobal(ctx context.Context, pgn uint32) (RequestResult, error)
	RequestDS(ctx context.Context, pgn uint32, address int, timeout time.Duration) (BusResult, error)
	RequestDM7(ctx context.Context, address, testID, spn, fmi int) (BusResult, error)
	// Collect listens for broadcasts of pgn for the given window.
	Collect(ctx context.Context, pgn uint32, window time.Duration) ([]j1939.Packet, error)
	OnImpostor(fn ImpostorFunc)
}
