package part1

import (
	"context"

	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// dm5Step checks Diagnostic Readiness 1 after the code clear.
type dm5Step struct{ stepBase }

func init() { Register(dm5Step{stepBase{step: 13}}) }

func (c dm5Step) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	x, err := r.requestBoth(j1939.PGNDM5)
	if err != nil {
		return r.finish(), err
	}
	if r.enter(StateReconcile) {
		r.add(rules.Reconcile(r.scope, s.Lookup, rules.ReconcileCodes{
			Name:        "DM5",
			Difference:  "4.a",
			MissingNack: "4.b",
			NoOBD:       "2.d",
		}, s.ObdAddresses(), x.global, x.ds)...)
	}
	if r.enter(StateValidate) {
		var monitors [][]j1939.MonitoredSystem
		for _, addr := range s.ObdAddresses() {
			p, ok := x.accepted(addr)
			if !ok {
				continue
			}
			dm5 := p.(*j1939.DM5)
			r.add(rules.ValidateDM5Counts(r.scope, s.Lookup, "2.a", "2.b", "2.c", dm5)...)
			monitors = append(monitors, rules.DM5Monitors(dm5))
		}
		r.add(rules.ValidateDuplicateMonitors(r.scope, "3.a", monitors)...)
		r.store(x)
	}
	return r.finish(), nil
}
