package part1

import (
	"context"
	"fmt"

	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// testResultsStep requests the DM30 scaled test results of every SPN a
// module flags in DM24 as supporting test results, and checks that the
// results were reset by the code clear.
type testResultsStep struct{ stepBase }

func init() { Register(testResultsStep{stepBase{step: 12}}) }

var testResultSections = rules.TestResultSections{Missing: "2.a", Nack: "2.b", NotReset: "2.c"}

func (c testResultsStep) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	if !r.enter(StateDSRequest) {
		return r.finish(), nil
	}
	total := 0
	var pending []rules.Outcome
modules:
	for _, addr := range s.ObdAddresses() {
		if r.stopped() {
			break
		}
		spns, err := c.testSPNs(r, addr)
		if err != nil {
			if r.stopped() {
				break
			}
			return r.finish(), err
		}
		total += len(spns)
		for _, spn := range spns {
			if r.stopped() {
				break modules
			}
			res, err := s.Gateway.RequestDM7(ctx, addr, j1939.TestIDForSPN, spn, 31)
			if err != nil {
				if r.stopped() {
					break modules
				}
				return r.finish(), fmt.Errorf("%s: DM7 for SPN %d to %s: %w", r.name, spn, s.Lookup.Name(addr), err)
			}
			if res.Malformed != nil {
				if o, ok := r.malformedOutcome(j1939.PGNDM30, addr, res.Malformed); ok {
					pending = append(pending, o)
				}
				continue
			}
			pending = append(pending, rules.ValidateTestResults(r.scope, s.Lookup, testResultSections, addr, spn, res)...)
		}
	}
	if r.enter(StateValidate) {
		r.add(pending...)
		if total == 0 {
			r.add(r.scope.Fail("1.a", "No OBD ECU reported an SPN supporting test results in DM24"))
		}
	} else {
		r.add(pending...)
	}
	return r.finish(), nil
}

// testSPNs returns the test result SPNs of addr from its stored DM24, asking
// the module for DM24 when none is stored.
func (c testResultsStep) testSPNs(r *run, addr int) ([]int, error) {
	if p, ok := r.sess.Repo.Latest(addr, j1939.KindDM24); ok {
		return p.(*j1939.DM24).TestResultSPNs(), nil
	}
	res, err := r.sess.Gateway.RequestDS(r.ctx, j1939.PGNDM24, addr, r.sess.Params.DSTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: DS DM24 to %s: %w", r.name, r.sess.Lookup.Name(addr), err)
	}
	if res.Malformed != nil {
		r.malformed(j1939.PGNDM24, addr, res.Malformed)
		return nil, nil
	}
	dm24, ok := res.Packet.(*j1939.DM24)
	if !ok {
		return nil, nil
	}
	r.storePacket(dm24)
	return dm24.TestResultSPNs(), nil
}
