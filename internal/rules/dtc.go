package rules

import (
	"example.com/obdgate/internal/j1939"
)

// ValidateDTCPacket is shared by DM1, DM2, DM6, DM12, DM23, DM27 and DM28:
// no trouble codes may be present and the MIL must be off.
func ValidateDTCPacket(scope Scope, lookup *j1939.Lookup, dtcSec, milSec string, p *j1939.DTCPacket) []Outcome {
	if p == nil {
		return nil
	}
	name := lookup.Name(p.SourceAddress())
	var out []Outcome
	if p.HasDTCs() {
		out = append(out, scope.Fail(dtcSec, "%s reported %d DTC(s) in its %s response", name, len(p.DTCs), p.Kind()))
	}
	if p.MIL != j1939.LampOff {
		out = append(out, scope.Fail(milSec, "%s did not report MIL off in its %s response (%s)", name, p.Kind(), p.MIL))
	}
	return out
}

// ValidateDM31 fails every DTC that still commands the MIL.
func ValidateDM31(scope Scope, lookup *j1939.Lookup, section string, p *j1939.DM31) []Outcome {
	if p == nil {
		return nil
	}
	name := lookup.Name(p.SourceAddress())
	var out []Outcome
	for _, st := range p.Statuses {
		if st.MIL != j1939.LampOff && st.MIL != j1939.LampNotAvailable {
			out = append(out, scope.Fail(section, "%s reported MIL not off for %s", name, st.DTC))
		}
	}
	return out
}

// ValidateDM25 fails a response carrying any freeze frame.
func ValidateDM25(scope Scope, lookup *j1939.Lookup, section string, p *j1939.DM25) []Outcome {
	if p == nil || len(p.FreezeFrames) == 0 {
		return nil
	}
	return []Outcome{scope.Fail(section, "%s reported %d freeze frame(s)", lookup.Name(p.SourceAddress()), len(p.FreezeFrames))}
}
