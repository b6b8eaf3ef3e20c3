package bus

import (
	"sort"

	"example.com/obdgate/internal/j1939"
)

// RequestResult is everything heard in answer to one global request.
type RequestResult struct {
	Packets []j1939.Packet
	Acks    []*j1939.Acknowledgment
	// Malformed holds replies whose payload could not be decoded.
	Malformed []Malformed
	// Retry is set when the gateway had to repeat the request.
	Retry bool
}

// Malformed is a reply that arrived but did not decode.
type Malformed struct {
	Address int
	Err     error
}

// IsEmpty reports silence: nothing was heard at all.
func (r RequestResult) IsEmpty() bool {
	return len(r.Packets) == 0 && len(r.Acks) == 0 && len(r.Malformed) == 0
}

// MalformedFrom returns the decode error of the reply sent by address.
func (r RequestResult) MalformedFrom(address int) (error, bool) {
	for _, m := range r.Malformed {
		if m.Address == address {
			return m.Err, true
		}
	}
	return nil, false
}

// PacketFrom returns the positive packet sent by address.
func (r RequestResult) PacketFrom(address int) (j1939.Packet, bool) {
	for _, p := range r.Packets {
		if p.SourceAddress() == address {
			return p, true
		}
	}
	return nil, false
}

// AckFrom returns the acknowledgment sent by address.
func (r RequestResult) AckFrom(address int) (*j1939.Acknowledgment, bool) {
	for _, a := range r.Acks {
		if a.SourceAddress() == address {
			return a, true
		}
	}
	return nil, false
}

// Sources returns the addresses that sent a positive packet, ascending.
func (r RequestResult) Sources() []int {
	seen := make(map[int]bool)
	var out []int
	for _, p := range r.Packets {
		if !seen[p.SourceAddress()] {
			seen[p.SourceAddress()] = true
			out = append(out, p.SourceAddress())
		}
	}
	sort.Ints(out)
	return out
}

// BusResult is the single answer to a destination specific request.
type BusResult struct {
	Packet j1939.Packet
	Ack    *j1939.Acknowledgment
	// Malformed is the decode error of a reply that did not decode.
	Malformed error
	Retry     bool
}

// IsEmpty reports that the module did not answer before the timeout.
func (r BusResult) IsEmpty() bool {
	return r.Packet == nil && r.Ack == nil && r.Malformed == nil
}

// IsPositive reports a data response.
func (r BusResult) IsPositive() bool {
	return r.Packet != nil
}

// IsNack reports a negative acknowledgment.
func (r BusResult) IsNack() bool {
	return r.Packet == nil && r.Ack != nil && r.Ack.Response == j1939.NACK
}
