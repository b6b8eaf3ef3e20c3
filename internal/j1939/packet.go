package j1939

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrShortPacket is returned when a payload is too short for its PGN.
var ErrShortPacket = errors.New("j1939: payload too short")

// Kind discriminates the decoded packet variants.
type Kind int

const (
	KindGeneric Kind = iota
	KindAcknowledgment
	KindComponentID
	KindDM1
	KindDM2
	KindDM5
	KindDM6
	KindDM12
	KindDM20
	KindDM21
	KindDM23
	KindDM24
	KindDM25
	KindDM26
	KindDM27
	KindDM28
	KindDM29
	KindDM30
	KindDM31
)

var kindNames = map[Kind]string{
	KindGeneric:        "Generic",
	KindAcknowledgment: "Acknowledgment",
	KindComponentID:    "Component Identification",
	KindDM1:            "DM1",
	KindDM2:            "DM2",
	KindDM5:            "DM5",
	KindDM6:            "DM6",
	KindDM12:           "DM12",
	KindDM20:           "DM20",
	KindDM21:           "DM21",
	KindDM23:           "DM23",
	KindDM24:           "DM24",
	KindDM25:           "DM25",
	KindDM26:           "DM26",
	KindDM27:           "DM27",
	KindDM28:           "DM28",
	KindDM29:           "DM29",
	KindDM30:           "DM30",
	KindDM31:           "DM31",
}

var kindPGNs = map[Kind]uint32{
	KindAcknowledgment: PGNAcknowledgment,
	KindComponentID:    PGNComponentID,
	KindDM1:            PGNDM1,
	KindDM2:            PGNDM2,
	KindDM5:            PGNDM5,
	KindDM6:            PGNDM6,
	KindDM12:           PGNDM12,
	KindDM20:           PGNDM20,
	KindDM21:           PGNDM21,
	KindDM23:           PGNDM23,
	KindDM24:           PGNDM24,
	KindDM25:           PGNDM25,
	KindDM26:           PGNDM26,
	KindDM27:           PGNDM27,
	KindDM28:           PGNDM28,
	KindDM29:           PGNDM29,
	KindDM30:           PGNDM30,
	KindDM31:           PGNDM31,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// PGN returns the parameter group number carrying this kind, or 0 for
// KindGeneric.
func (k Kind) PGN() uint32 {
	return kindPGNs[k]
}

// KindOf maps a PGN to the packet kind decoded from it.
func KindOf(pgn uint32) Kind {
	for k, p := range kindPGNs {
		if p == pgn {
			return k
		}
	}
	return KindGeneric
}

// Packet is a decoded, immutable diagnostic message.
type Packet interface {
	Kind() Kind
	PGN() uint32
	SourceAddress() int
	Bytes() []byte
	String() string
}

// Frame carries the raw bytes of one received parameter group.
type Frame struct {
	pgn    uint32
	source int
	data   []byte
}

// NewFrame copies data so later mutation by the caller cannot alter the
// packet.
func NewFrame(pgn uint32, source int, data []byte) Frame {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Frame{pgn: pgn, source: source, data: cp}
}

func (f Frame) PGN() uint32        { return f.pgn }
func (f Frame) SourceAddress() int { return f.source }

// Bytes returns a copy of the payload.
func (f Frame) Bytes() []byte {
	cp := make([]byte, len(f.data))
	copy(cp, f.data)
	return cp
}

func (f Frame) byteAt(i int) uint8 {
	if i < 0 || i >= len(f.data) {
		return notAvailable8
	}
	return f.data[i]
}

func (f Frame) wordAt(i int) uint16 {
	if i+1 >= len(f.data) {
		return notAvailable16
	}
	return uint16(f.data[i]) | uint16(f.data[i+1])<<8
}

func (f Frame) hex() string {
	return fmt.Sprintf("% X", f.data)
}

// GenericPacket is any PGN the harness does not interpret.
type GenericPacket struct {
	Frame
}

func (p *GenericPacket) Kind() Kind { return KindGeneric }

func (p *GenericPacket) String() string {
	return fmt.Sprintf("PGN %d from %d: [%s]", p.pgn, p.source, p.hex())
}

// Equal reports whether two packets carry the same kind, source and bytes.
// Packets received through different request paths compare by value.
func Equal(a, b Packet) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() &&
		a.SourceAddress() == b.SourceAddress() &&
		bytes.Equal(a.Bytes(), b.Bytes())
}

// Decode interprets data received with the given PGN from source address sa.
func Decode(pgn uint32, sa int, data []byte) (Packet, error) {
	f := NewFrame(pgn, sa, data)
	switch pgn {
	case PGNAcknowledgment:
		return newAcknowledgment(f)
	case PGNComponentID:
		return newComponentIdentification(f)
	case PGNDM1, PGNDM2, PGNDM6, PGNDM12, PGNDM23, PGNDM27, PGNDM28:
		return newDTCPacket(f)
	case PGNDM5:
		return newDM5(f)
	case PGNDM20:
		return newDM20(f)
	case PGNDM21:
		return newDM21(f)
	case PGNDM24:
		return newDM24(f)
	case PGNDM25:
		return newDM25(f)
	case PGNDM26:
		return newDM26(f)
	case PGNDM29:
		return newDM29(f)
	case PGNDM30:
		return newDM30(f)
	case PGNDM31:
		return newDM31(f)
	default:
		return &GenericPacket{Frame: f}, nil
	}
}

// MustDecode is Decode for fixtures; it panics on malformed input.
func MustDecode(pgn uint32, sa int, data []byte) Packet {
	p, err := Decode(pgn, sa, data)
	if err != nil {
		panic(fmt.Sprintf("j1939: decode pgn %d from %d: %v", pgn, sa, err))
	}
	return p
}

func requireLen(f Frame, n int) error {
	if len(f.data) < n {
		return fmt.Errorf("%w: pgn %d from %d has %d bytes, need %d", ErrShortPacket, f.pgn, f.source, len(f.data), n)
	}
	return nil
}
