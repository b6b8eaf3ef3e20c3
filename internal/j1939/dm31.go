package j1939

import (
	"fmt"
	"strings"
)

// DTCLampStatus associates one DTC with the lamps it commands.
type DTCLampStatus struct {
	DTC DiagnosticTroubleCode
	MIL LampStatus
	RSL LampStatus
	AWL LampStatus
	PL  LampStatus
}

// DM31 is DTC to Lamp Association.
type DM31 struct {
	Frame
	Statuses []DTCLampStatus
}

func newDM31(f Frame) (*DM31, error) {
	p := &DM31{Frame: f}
	for i := 0; i+6 <= len(f.data); i += 6 {
		b := f.data[i : i+6]
		dtc := decodeDTC(b[:4])
		if dtc.SPN == 0x7FFFF || (dtc.SPN == 0 && dtc.FMI == 0) {
			continue
		}
		lamps, flash := b[4], b[5]
		p.Statuses = append(p.Statuses, DTCLampStatus{
			DTC: dtc,
			MIL: lampStatus(lamps>>6, flash>>6),
			RSL: lampStatus(lamps>>4, flash>>4),
			AWL: lampStatus(lamps>>2, flash>>2),
			PL:  lampStatus(lamps, flash),
		})
	}
	return p, nil
}

// NewDM31 encodes DTC/lamp pairs. Only the MIL on/off state is encoded;
// the other lamps are sent as off.
func NewDM31(source int, entries ...DTCLampStatus) *DM31 {
	var data []byte
	for _, e := range entries {
		lamp := byte(0x00)
		if e.MIL == LampOn {
			lamp = 0x40
		}
		data = append(data, e.DTC.Encode()...)
		data = append(data, lamp, 0xFF)
	}
	if len(data) == 0 {
		data = []byte{0, 0, 0, 0, 0, 0xFF, 0xFF, 0xFF}
	}
	p, _ := newDM31(NewFrame(PGNDM31, source, data))
	return p
}

func (p *DM31) Kind() Kind { return KindDM31 }

func (p *DM31) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DM31 from %d:", p.source)
	if len(p.Statuses) == 0 {
		b.WriteString(" No DTCs")
	}
	for _, s := range p.Statuses {
		fmt.Fprintf(&b, "\n  %s MIL: %s, RSL: %s, AWL: %s, PL: %s", s.DTC, s.MIL, s.RSL, s.AWL, s.PL)
	}
	return b.String()
}
