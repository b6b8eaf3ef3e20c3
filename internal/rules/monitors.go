package rules

import (
	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/registry"
)

// misfireExemptUntil is the first engine model year in which compression
// ignition engines must report misfire as a non-complete monitor.
const misfireExemptUntil = 2019

// coldStartExemptUntil is the same cutoff for the cold start aid system.
const coldStartExemptUntil = 2018

// ValidateDM5Counts checks the DTC counters and the OBD compliance byte of
// one DM5 response.
func ValidateDM5Counts(scope Scope, lookup *j1939.Lookup, activeSec, previousSec, complianceSec string, p *j1939.DM5) []Outcome {
	if p == nil {
		return nil
	}
	name := lookup.Name(p.SourceAddress())
	var out []Outcome
	if p.ActiveCount != 0 && p.ActiveCount != 0xFF {
		out = append(out, scope.Fail(activeSec, "%s reported active DTC count not = 0", name))
	}
	if p.PreviousCount != 0 && p.PreviousCount != 0xFF {
		out = append(out, scope.Fail(previousSec, "%s reported previously active DTC count not = 0", name))
	}
	if !p.IsOBD() {
		out = append(out, scope.Fail(complianceSec, "%s did not report a valid OBD compliance value (%d)", name, p.OBDCompliance))
	}
	return out
}

// MonitorSections maps the four DM5/DM26 inconsistency classes.
type MonitorSections struct {
	SupportedComplete     string // supported, reported complete (non CCM)
	UnsupportedEnabled    string // not supported, reported enabled
	ComprehensiveDisabled string // CCM supported, not reported enabled
	UnsupportedIncomplete string // not supported, reported not complete
}

// ValidateMonitors cross-checks one module's DM26 against its DM5. At most
// one outcome is emitted per monitor.
func ValidateMonitors(scope Scope, lookup *j1939.Lookup, sec MonitorSections, vehicle registry.VehicleInformation, dm5 *j1939.DM5, dm26 *j1939.DM26) []Outcome {
	if dm5 == nil || dm26 == nil {
		return nil
	}
	name := lookup.Name(dm26.SourceAddress())
	var out []Outcome
	for _, sys := range j1939.CompositeSystems {
		supported := dm5.Monitor(sys).Enabled
		st := dm26.Monitor(sys)
		switch {
		case supported && sys == j1939.ComprehensiveComponent:
			if !st.Enabled {
				out = append(out, scope.Fail(sec.ComprehensiveDisabled,
					"%s response for a monitor %s in DM5 is reported as supported and is not reported as enabled by DM26 response", name, sys))
			}
		case supported:
			if st.Complete && !firstCycleExempt(sys, vehicle) {
				out = append(out, scope.Fail(sec.SupportedComplete,
					"%s response for a monitor %s in DM5 is reported as supported and is reported as complete/not supported DM26 response", name, sys))
			}
		case st.Enabled:
			out = append(out, scope.Fail(sec.UnsupportedEnabled,
				"%s response for a monitor %s in DM5 is reported as not supported and is reported as enabled by DM26 response", name, sys))
		case !st.Complete:
			out = append(out, scope.Fail(sec.UnsupportedIncomplete,
				"%s response for a monitor %s in DM5 is reported as not supported and is not reported as complete/not supported by DM26 response", name, sys))
		}
	}
	return out
}

// Compression ignition engines before the cutoffs may complete misfire and
// cold start aid within the first drive cycle. Spark ignition engines have
// no exemption.
func firstCycleExempt(sys j1939.CompositeSystem, vehicle registry.VehicleInformation) bool {
	if !vehicle.FuelType.IsCompressionIgnition() {
		return false
	}
	switch sys {
	case j1939.Misfire:
		return vehicle.EngineModelYear < misfireExemptUntil
	case j1939.ColdStartAidSystem:
		return vehicle.EngineModelYear < coldStartExemptUntil
	}
	return false
}

// ValidateDuplicateMonitors warns once per monitor reported by more than one
// module. states holds one entry per module; comprehensive component is
// expected on every module and is skipped.
func ValidateDuplicateMonitors(scope Scope, section string, states [][]j1939.MonitoredSystem) []Outcome {
	counts := make(map[j1939.CompositeSystem]int)
	for _, module := range states {
		for _, st := range module {
			if st.Enabled {
				counts[st.System]++
			}
		}
	}
	var out []Outcome
	for _, sys := range j1939.CompositeSystems {
		if sys == j1939.ComprehensiveComponent || counts[sys] < 2 {
			continue
		}
		out = append(out, scope.Warn(section, "Required monitor %s is supported by more than one OBD ECU", sys))
	}
	return out
}

// DM5Monitors lists a DM5's monitor states for ValidateDuplicateMonitors.
func DM5Monitors(p *j1939.DM5) []j1939.MonitoredSystem {
	out := make([]j1939.MonitoredSystem, 0, len(j1939.CompositeSystems))
	for _, sys := range j1939.CompositeSystems {
		out = append(out, p.Monitor(sys))
	}
	return out
}

// DM26Monitors lists a DM26's monitor states for ValidateDuplicateMonitors.
func DM26Monitors(p *j1939.DM26) []j1939.MonitoredSystem {
	out := make([]j1939.MonitoredSystem, 0, len(j1939.CompositeSystems))
	for _, sys := range j1939.CompositeSystems {
		out = append(out, p.Monitor(sys))
	}
	return out
}
