package rules

import (
	"fmt"

	"example.com/obdgate/internal/bus"
	"example.com/obdgate/internal/j1939"
)

// ReconcileCodes names the message and the requirement sections of one
// step's global versus destination specific checks. An empty section
// disables that check.
type ReconcileCodes struct {
	Name         string
	Difference   string
	MissingNack  string
	NoOBD        string
	FunctionZero string
	// FunctionZeroAddress is the engine function module, or -1 when none
	// is registered.
	FunctionZeroAddress int
}

// Reconcile compares the global result with the DS result of every module
// in modules. Modules without an entry in ds were not requested and are
// skipped. Outcomes are ordered: per module in ascending address order the
// difference then the missing NACK check, then the no OBD ECU check, then
// the function 0 check.
func Reconcile(scope Scope, lookup *j1939.Lookup, codes ReconcileCodes, modules []int, global bus.RequestResult, ds map[int]bus.BusResult) []Outcome {
	var out []Outcome
	for _, addr := range modules {
		dsRes, requested := ds[addr]
		if !requested {
			continue
		}
		gp, inGlobal := global.PacketFrom(addr)
		_, badGlobal := global.MalformedFrom(addr)
		switch {
		case badGlobal || dsRes.Malformed != nil:
		case inGlobal && dsRes.IsPositive():
			if codes.Difference != "" && !j1939.Equal(gp, dsRes.Packet) {
				out = append(out, scope.Fail(codes.Difference,
					"Difference compared to data received during global request from %s", lookup.Name(addr)))
			}
		case !inGlobal && !dsRes.IsPositive() && !dsRes.IsNack():
			if codes.MissingNack != "" {
				out = append(out, scope.Fail(codes.MissingNack,
					"%s did not provide a response to Global query and did not provide a NACK for the DS query", lookup.Name(addr)))
			}
		}
	}
	if codes.NoOBD != "" && len(modules) > 0 && !anyPositive(global, modules) {
		out = append(out, scope.Fail(codes.NoOBD, "No OBD ECU provided %s", codes.Name))
	}
	if codes.FunctionZero != "" && !functionZeroAnswered(codes.FunctionZeroAddress, global, ds) {
		out = append(out, scope.Fail(codes.FunctionZero, "There is no positive response from function 0"))
	}
	return out
}

func anyPositive(global bus.RequestResult, modules []int) bool {
	for _, addr := range modules {
		if _, ok := global.PacketFrom(addr); ok {
			return true
		}
	}
	return false
}

func functionZeroAnswered(addr int, global bus.RequestResult, ds map[int]bus.BusResult) bool {
	if global.IsEmpty() || addr < 0 {
		return false
	}
	if _, ok := global.PacketFrom(addr); ok {
		return true
	}
	return ds[addr].IsPositive()
}

// Malformed reports a reply from addr that arrived but could not be
// decoded. It is keyed to the step, not to a section.
func Malformed(scope Scope, lookup *j1939.Lookup, name string, addr int) Outcome {
	code := fmt.Sprintf("6.%d.%d", scope.Part, scope.Step)
	return Outcome{
		Part:     scope.Part,
		Step:     scope.Step,
		Code:     code,
		Severity: FAIL,
		Message:  fmt.Sprintf("%s - %s sent a malformed %s response", code, lookup.Name(addr), name),
	}
}
