package rules

import (
	"example.com/obdgate/internal/j1939"
)

// ValidateDM21 requires every distance and time counter to be zero after a
// code clear. sections lists, in order, the sections for distance with MIL
// on, distance since clear, time with MIL on and time since clear.
func ValidateDM21(scope Scope, lookup *j1939.Lookup, sections [4]string, p *j1939.DM21) []Outcome {
	if p == nil {
		return nil
	}
	name := lookup.Name(p.SourceAddress())
	checks := []struct {
		value uint16
		label string
	}{
		{p.KmWithMIL, "distance traveled while MIL is activated"},
		{p.KmSinceCleared, "distance since DTCs cleared"},
		{p.MinutesWithMIL, "time run by engine while MIL is activated"},
		{p.MinutesSinceCleared, "time since DTCs cleared"},
	}
	var out []Outcome
	for i, c := range checks {
		if c.value != 0 {
			out = append(out, scope.Fail(sections[i], "%s reported %s is not zero (%d)", name, c.label, c.value))
		}
	}
	return out
}

// ValidateDM26Counters requires warm-ups and time since engine start to be
// zero.
func ValidateDM26Counters(scope Scope, lookup *j1939.Lookup, warmUpSec, timeSec string, p *j1939.DM26) []Outcome {
	if p == nil {
		return nil
	}
	name := lookup.Name(p.SourceAddress())
	var out []Outcome
	if p.WarmUpsSinceClear != 0 {
		out = append(out, scope.Fail(warmUpSec, "%s response indicates number of warm-ups since code clear is not zero", name))
	}
	if p.TimeSinceEngineStart != 0 {
		out = append(out, scope.Fail(timeSec, "%s response indicates time since engine start is not zero", name))
	}
	return out
}

// ValidateDM29 checks the regulated DTC counts and their coherence with the
// module's DM27 support: dm27Supported is true when the module answered
// DM27 positively.
func ValidateDM29(scope Scope, lookup *j1939.Lookup, countSec, supportedSec, unsupportedSec string, p *j1939.DM29, dm27Supported bool) []Outcome {
	if p == nil {
		return nil
	}
	name := lookup.Name(p.SourceAddress())
	var out []Outcome
	if p.HasNonZeroCount() {
		out = append(out, scope.Fail(countSec, "%s did not report pending/all pending/MIL on/previous MIL on/permanent = 0/0/0/0/0", name))
	}
	switch {
	case dm27Supported && !p.AllPendingSupported():
		out = append(out, scope.Fail(supportedSec, "%s response indicates number of all pending DTCs is not supported but DM27 is supported", name))
	case !dm27Supported && p.AllPendingSupported():
		out = append(out, scope.Fail(unsupportedSec, "%s response indicates number of all pending DTCs is supported but DM27 is not supported", name))
	}
	return out
}

// ValidateDM20 checks the in-use performance counters after a code clear.
func ValidateDM20(scope Scope, lookup *j1939.Lookup, conditionsSec, denominatorSec string, p *j1939.DM20) []Outcome {
	if p == nil {
		return nil
	}
	name := lookup.Name(p.SourceAddress())
	var out []Outcome
	if p.OBDConditionsEncountered > p.IgnitionCycles {
		out = append(out, scope.Warn(conditionsSec,
			"%s reported OBD monitoring conditions encountered (%d) greater than ignition cycles (%d)",
			name, p.OBDConditionsEncountered, p.IgnitionCycles))
	}
	for _, r := range p.Ratios {
		if r.Denominator > p.OBDConditionsEncountered {
			out = append(out, scope.Fail(denominatorSec,
				"%s reported denominator (%d) for SPN %d greater than OBD monitoring conditions encountered (%d)",
				name, r.Denominator, r.SPN, p.OBDConditionsEncountered))
		}
	}
	return out
}
