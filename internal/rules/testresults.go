package rules

import (
	"example.com/obdgate/internal/bus"
	"example.com/obdgate/internal/j1939"
)

// TestResultSections maps the DM7/DM30 checks.
type TestResultSections struct {
	Missing  string
	Nack     string
	NotReset string
}

// ValidateTestResults checks the answer of address to a DM7 request for
// every test of spn. Every returned result for the SPN must be in its
// cleared state.
func ValidateTestResults(scope Scope, lookup *j1939.Lookup, sec TestResultSections, address, spn int, res bus.BusResult) []Outcome {
	name := lookup.Name(address)
	if res.IsNack() {
		return []Outcome{scope.Fail(sec.Nack, "%s NACK'ed the DM7 request for SPN %d", name, spn)}
	}
	dm30, ok := res.Packet.(*j1939.DM30)
	if !ok {
		return []Outcome{scope.Fail(sec.Missing, "No test result for supported SPN %d from %s", spn, name)}
	}
	var out []Outcome
	found := false
	for _, r := range dm30.Results {
		if r.SPN != spn {
			continue
		}
		found = true
		if !r.IsInitialized() {
			out = append(out, scope.Fail(sec.NotReset, "Test result for SPN %d FMI %d from %s was not reset", r.SPN, r.FMI, name))
		}
	}
	if !found {
		out = append(out, scope.Fail(sec.Missing, "No test result for supported SPN %d from %s", spn, name))
	}
	return out
}

// ValidateSPNSupport compares a DM24 re-request with the copy stored earlier.
func ValidateSPNSupport(scope Scope, lookup *j1939.Lookup, section string, stored, current *j1939.DM24) []Outcome {
	if stored == nil || current == nil {
		return nil
	}
	if j1939.Equal(stored, current) {
		return nil
	}
	return []Outcome{scope.Fail(section, "%s DM24 response differs from the one stored earlier in Part 1", lookup.Name(current.SourceAddress()))}
}
