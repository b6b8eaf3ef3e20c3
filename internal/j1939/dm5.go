package j1939

import (
	"fmt"
	"strings"
)

// OBD compliance values (SPN 1220) that mean the module is not an OBD ECU.
var nonOBDCompliance = map[uint8]bool{0: true, 5: true, 0xFB: true, 0xFC: true, 0xFD: true, 0xFE: true, 0xFF: true}

// DM5 is Diagnostic Readiness 1.
type DM5 struct {
	Frame
	ActiveCount   uint8
	PreviousCount uint8
	OBDCompliance uint8
	monitors      map[CompositeSystem]MonitoredSystem
}

func newDM5(f Frame) (*DM5, error) {
	if err := requireLen(f, 8); err != nil {
		return nil, err
	}
	return &DM5{
		Frame:         f,
		ActiveCount:   f.data[0],
		PreviousCount: f.data[1],
		OBDCompliance: f.data[2],
		monitors:      decodeMonitors(f.source, f.data[3], f.wordAt(4), f.wordAt(6)),
	}, nil
}

// NewDM5 encodes a DM5 for the given monitor states. Enabled is read as
// "supported".
func NewDM5(source int, active, previous, compliance uint8, states map[CompositeSystem]MonitoredSystem) *DM5 {
	c, en, nc := EncodeMonitors(states)
	data := []byte{active, previous, compliance, c, byte(en), byte(en >> 8), byte(nc), byte(nc >> 8)}
	p, _ := newDM5(NewFrame(PGNDM5, source, data))
	return p
}

func (p *DM5) Kind() Kind { return KindDM5 }

// IsOBD reports whether the compliance byte names an OBD standard.
func (p *DM5) IsOBD() bool {
	return !nonOBDCompliance[p.OBDCompliance]
}

// Monitor returns the (supported, complete) state of one system.
func (p *DM5) Monitor(sys CompositeSystem) MonitoredSystem {
	return p.monitors[sys]
}

// SupportedMonitors lists the supported systems in display order.
func (p *DM5) SupportedMonitors() []CompositeSystem {
	var out []CompositeSystem
	for _, sys := range CompositeSystems {
		if p.monitors[sys].Enabled {
			out = append(out, sys)
		}
	}
	return out
}

func (p *DM5) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DM5 from %d: OBD Compliance: %d, Active Codes: %d, Previously Active Codes: %d",
		p.source, p.OBDCompliance, p.ActiveCount, p.PreviousCount)
	for _, sys := range CompositeSystems {
		st := p.monitors[sys]
		fmt.Fprintf(&b, "\n  %-28s %s", sys.String(), dm5State(st))
	}
	return b.String()
}

func dm5State(st MonitoredSystem) string {
	switch {
	case st.Enabled && st.Complete:
		return "supported, complete"
	case st.Enabled:
		return "supported, not complete"
	case st.Complete:
		return "not supported, complete"
	default:
		return "not supported, not complete"
	}
}
