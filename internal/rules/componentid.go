package rules

import (
	"example.com/obdgate/internal/j1939"
)

// ComponentIDSections maps the component identification checks to the
// requirement sections of the step running them.
type ComponentIDSections struct {
	Unprintable   string
	SerialMissing string
	SerialDigits  string
	SerialLength  string
	MakeLength    string
	ModelLength   string
}

// ValidateComponentID applies the field rules to one response. The checks
// are independent; only a missing serial number suppresses the other
// serial number rules.
func ValidateComponentID(scope Scope, lookup *j1939.Lookup, sec ComponentIDSections, p *j1939.ComponentIdentification) []Outcome {
	if p == nil {
		return nil
	}
	name := lookup.Name(p.SourceAddress())
	var out []Outcome

	fields := []struct {
		label string
		value []byte
	}{
		{"Make field (SPN 586)", p.Make},
		{"Model field (SPN 587)", p.Model},
		{"Serial number field (SPN 588)", p.SerialNumber},
		{"Unit number (Power unit) field (SPN 233)", p.UnitNumber},
	}
	for _, f := range fields {
		if !isPrintable(f.value) {
			out = append(out, scope.Fail(sec.Unprintable, "%s from %s contains unprintable ASCII characters", f.label, name))
		}
	}

	if p.SerialNumber == nil {
		out = append(out, scope.Fail(sec.SerialMissing, "Serial number field (SPN 588) from %s is not present", name))
	} else {
		serial := p.SerialNumber
		if !endsInDigits(serial, 5) {
			out = append(out, scope.Fail(sec.SerialDigits, "Serial number field (SPN 588) from %s does not end in five numeric characters", name))
		}
		if len(serial) < 8 {
			out = append(out, scope.Warn(sec.SerialLength, "Serial number field (SPN 588) from %s is less than 8 characters long", name))
		}
	}

	if n := len(p.Make); n < 2 || n > 5 {
		out = append(out, scope.Warn(sec.MakeLength, "Make field (SPN 586) from %s is less than two or more than five characters long", name))
	}
	if len(p.Model) == 0 {
		out = append(out, scope.Warn(sec.ModelLength, "Model field (SPN 587) from %s is less than 1 character long", name))
	}
	return out
}

func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}

func endsInDigits(b []byte, n int) bool {
	if len(b) < n {
		return false
	}
	for _, c := range b[len(b)-n:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
