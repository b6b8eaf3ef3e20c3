package j1939

import (
	"fmt"
	"strings"
)

// LampStatus is the two bit on/off encoding of a lamp plus its flash state.
type LampStatus int

const (
	LampOff LampStatus = iota
	LampOn
	LampError
	LampNotAvailable
	LampSlowFlash
	LampFastFlash
)

func (s LampStatus) String() string {
	switch s {
	case LampOff:
		return "off"
	case LampOn:
		return "on"
	case LampError:
		return "error"
	case LampNotAvailable:
		return "not supported"
	case LampSlowFlash:
		return "slow flash"
	case LampFastFlash:
		return "fast flash"
	default:
		return fmt.Sprintf("LampStatus(%d)", int(s))
	}
}

// lampStatus combines the on/off bits with the flash bits. A lamp that is
// on and flashing reports its flash rate.
func lampStatus(onOff, flash uint8) LampStatus {
	switch onOff & 0x03 {
	case 0:
		return LampOff
	case 1:
		switch flash & 0x03 {
		case 0:
			return LampSlowFlash
		case 1:
			return LampFastFlash
		default:
			return LampOn
		}
	case 2:
		return LampError
	default:
		return LampNotAvailable
	}
}

// DiagnosticTroubleCode is one SPN/FMI pair with its occurrence count.
type DiagnosticTroubleCode struct {
	SPN              int
	FMI              int
	ConversionMethod int
	OccurrenceCount  int
}

func decodeDTC(b []byte) DiagnosticTroubleCode {
	return DiagnosticTroubleCode{
		SPN:              int(b[0]) | int(b[1])<<8 | int(b[2]&0xE0)<<11,
		FMI:              int(b[2] & 0x1F),
		ConversionMethod: int(b[3] >> 7),
		OccurrenceCount:  int(b[3] & 0x7F),
	}
}

// Encode returns the four byte wire form of the DTC.
func (d DiagnosticTroubleCode) Encode() []byte {
	return []byte{
		byte(d.SPN),
		byte(d.SPN >> 8),
		byte((d.SPN>>11)&0xE0) | byte(d.FMI&0x1F),
		byte(d.ConversionMethod&0x01)<<7 | byte(d.OccurrenceCount&0x7F),
	}
}

func (d DiagnosticTroubleCode) String() string {
	return fmt.Sprintf("DTC %d:%d - %d times", d.SPN, d.FMI, d.OccurrenceCount)
}

// DTCPacket is the shared layout of DM1, DM2, DM6, DM12, DM23, DM27 and DM28.
type DTCPacket struct {
	Frame
	MIL  LampStatus
	RSL  LampStatus
	AWL  LampStatus
	PL   LampStatus
	DTCs []DiagnosticTroubleCode
	kind Kind
}

func newDTCPacket(f Frame) (*DTCPacket, error) {
	if err := requireLen(f, 2); err != nil {
		return nil, err
	}
	lamps, flash := f.data[0], f.data[1]
	p := &DTCPacket{
		Frame: f,
		MIL:   lampStatus(lamps>>6, flash>>6),
		RSL:   lampStatus(lamps>>4, flash>>4),
		AWL:   lampStatus(lamps>>2, flash>>2),
		PL:    lampStatus(lamps, flash),
		kind:  KindOf(f.pgn),
	}
	for i := 2; i+4 <= len(f.data); i += 4 {
		dtc := decodeDTC(f.data[i : i+4])
		if dtc.SPN == 0 && dtc.FMI == 0 && dtc.OccurrenceCount == 0 {
			continue
		}
		// padding after a single DTC in an eight byte frame
		if dtc.SPN == 0x7FFFF && dtc.FMI == 0x1F {
			continue
		}
		p.DTCs = append(p.DTCs, dtc)
	}
	return p, nil
}

// NewDTCPacket encodes a DTC message. The lamp arguments are the two bit
// on/off values; flash is left "not available".
func NewDTCPacket(pgn uint32, source int, mil, rsl, awl, pl uint8, dtcs ...DiagnosticTroubleCode) *DTCPacket {
	data := []byte{(mil&3)<<6 | (rsl&3)<<4 | (awl&3)<<2 | pl&3, 0xFF}
	for _, d := range dtcs {
		data = append(data, d.Encode()...)
	}
	if len(dtcs) == 0 {
		data = append(data, 0, 0, 0, 0)
	}
	for len(data) < 8 {
		data = append(data, 0xFF)
	}
	p, _ := newDTCPacket(NewFrame(pgn, source, data))
	return p
}

func (p *DTCPacket) Kind() Kind { return p.kind }

// HasDTCs reports whether any trouble code is present.
func (p *DTCPacket) HasDTCs() bool { return len(p.DTCs) > 0 }

func (p *DTCPacket) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s from %d: MIL: %s, RSL: %s, AWL: %s, PL: %s", p.kind, p.source, p.MIL, p.RSL, p.AWL, p.PL)
	if len(p.DTCs) == 0 {
		b.WriteString(", No DTCs")
		return b.String()
	}
	for _, d := range p.DTCs {
		b.WriteString("\n  ")
		b.WriteString(d.String())
	}
	return b.String()
}
