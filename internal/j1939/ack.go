package j1939

import "fmt"

// ResponseCode is the control byte of an acknowledgment.
type ResponseCode uint8

const (
	ACK    ResponseCode = 0
	NACK   ResponseCode = 1
	DENIED ResponseCode = 2
	BUSY   ResponseCode = 3
)

func (c ResponseCode) String() string {
	switch c {
	case ACK:
		return "ACK"
	case NACK:
		return "NACK"
	case DENIED:
		return "Access Denied"
	case BUSY:
		return "Busy"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// Acknowledgment is PGN 59392.
type Acknowledgment struct {
	Frame
	Response       ResponseCode
	GroupFunction  uint8
	AddressAcked   int
	AcknowledgePGN uint32
}

func newAcknowledgment(f Frame) (*Acknowledgment, error) {
	if err := requireLen(f, 8); err != nil {
		return nil, err
	}
	return &Acknowledgment{
		Frame:          f,
		Response:       ResponseCode(f.data[0]),
		GroupFunction:  f.data[1],
		AddressAcked:   int(f.data[4]),
		AcknowledgePGN: uint32(f.data[5]) | uint32(f.data[6])<<8 | uint32(f.data[7])<<16,
	}, nil
}

// NewAcknowledgment builds the eight byte acknowledgment a module at source
// sends for a request of pgn issued by requester.
func NewAcknowledgment(source int, code ResponseCode, requester int, pgn uint32) *Acknowledgment {
	data := []byte{
		byte(code), 0xFF, 0xFF, 0xFF, byte(requester),
		byte(pgn), byte(pgn >> 8), byte(pgn >> 16),
	}
	ack, _ := newAcknowledgment(NewFrame(PGNAcknowledgment, source, data))
	return ack
}

func (a *Acknowledgment) Kind() Kind { return KindAcknowledgment }

func (a *Acknowledgment) String() string {
	return fmt.Sprintf("Acknowledgment from %d: Response: %s, Group Function: %d, Address Acknowledged: %d, PGN Requested: %d",
		a.source, a.Response, a.GroupFunction, a.AddressAcked, a.AcknowledgePGN)
}
