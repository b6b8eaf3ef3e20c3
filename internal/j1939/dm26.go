package j1939

import (
	"fmt"
	"strings"
)

// DM26 is Diagnostic Readiness 3: readiness for the current drive cycle.
type DM26 struct {
	Frame
	TimeSinceEngineStart uint16
	WarmUpsSinceClear    uint8
	monitors             map[CompositeSystem]MonitoredSystem
}

func newDM26(f Frame) (*DM26, error) {
	if err := requireLen(f, 8); err != nil {
		return nil, err
	}
	return &DM26{
		Frame:                f,
		TimeSinceEngineStart: f.wordAt(0),
		WarmUpsSinceClear:    f.data[2],
		monitors:             decodeMonitors(f.source, f.data[3], f.wordAt(4), f.wordAt(6)),
	}, nil
}

// NewDM26 encodes a DM26 for the given monitor states.
func NewDM26(source int, secondsSinceStart uint16, warmUps uint8, states map[CompositeSystem]MonitoredSystem) *DM26 {
	c, en, nc := EncodeMonitors(states)
	data := []byte{byte(secondsSinceStart), byte(secondsSinceStart >> 8), warmUps, c, byte(en), byte(en >> 8), byte(nc), byte(nc >> 8)}
	p, _ := newDM26(NewFrame(PGNDM26, source, data))
	return p
}

func (p *DM26) Kind() Kind { return KindDM26 }

// Monitor returns the (enabled, complete) state of one system.
func (p *DM26) Monitor(sys CompositeSystem) MonitoredSystem {
	return p.monitors[sys]
}

func (p *DM26) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DM26 from %d: Warm-ups: %d, Time Since Engine Start: %d seconds",
		p.source, p.WarmUpsSinceClear, p.TimeSinceEngineStart)
	for _, sys := range CompositeSystems {
		st := p.monitors[sys]
		fmt.Fprintf(&b, "\n  %-28s %s", sys.String(), dm26State(st))
	}
	return b.String()
}

func dm26State(st MonitoredSystem) string {
	switch {
	case st.Enabled && st.Complete:
		return "enabled, complete"
	case st.Enabled:
		return "enabled, not complete"
	case st.Complete:
		return "not enabled, complete"
	default:
		return "not enabled, not complete"
	}
}
