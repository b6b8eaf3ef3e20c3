package j1939

import (
	"fmt"
	"strings"
)

// PerformanceRatio is one in-use monitor performance ratio record.
type PerformanceRatio struct {
	SPN         int
	Numerator   uint16
	Denominator uint16
}

// DM20 is Monitor Performance Ratio.
type DM20 struct {
	Frame
	IgnitionCycles           uint16
	OBDConditionsEncountered uint16
	Ratios                   []PerformanceRatio
}

func newDM20(f Frame) (*DM20, error) {
	if err := requireLen(f, 4); err != nil {
		return nil, err
	}
	p := &DM20{
		Frame:                    f,
		IgnitionCycles:           f.wordAt(0),
		OBDConditionsEncountered: f.wordAt(2),
	}
	for i := 4; i+7 <= len(f.data); i += 7 {
		b := f.data[i : i+7]
		p.Ratios = append(p.Ratios, PerformanceRatio{
			SPN:         int(b[0]) | int(b[1])<<8 | int(b[2]&0xE0)<<11,
			Numerator:   uint16(b[3]) | uint16(b[4])<<8,
			Denominator: uint16(b[5]) | uint16(b[6])<<8,
		})
	}
	return p, nil
}

// NewDM20 encodes the counters and ratios.
func NewDM20(source int, ignitionCycles, conditions uint16, ratios ...PerformanceRatio) *DM20 {
	data := []byte{byte(ignitionCycles), byte(ignitionCycles >> 8), byte(conditions), byte(conditions >> 8)}
	for _, r := range ratios {
		data = append(data,
			byte(r.SPN), byte(r.SPN>>8), byte((r.SPN>>11)&0xE0)|0x1F,
			byte(r.Numerator), byte(r.Numerator>>8),
			byte(r.Denominator), byte(r.Denominator>>8))
	}
	p, _ := newDM20(NewFrame(PGNDM20, source, data))
	return p
}

func (p *DM20) Kind() Kind { return KindDM20 }

func (p *DM20) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DM20 from %d: Ignition Cycles: %d, OBD Monitoring Conditions Encountered: %d",
		p.source, p.IgnitionCycles, p.OBDConditionsEncountered)
	for _, r := range p.Ratios {
		fmt.Fprintf(&b, "\n  SPN %d: %d / %d", r.SPN, r.Numerator, r.Denominator)
	}
	return b.String()
}
