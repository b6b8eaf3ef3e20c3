package part1

import (
	"context"

	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// dm20Step checks the monitor performance ratio counters.
type dm20Step struct{ stepBase }

func init() { Register(dm20Step{stepBase{step: 25}}) }

func (c dm20Step) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	x, err := r.requestBoth(j1939.PGNDM20)
	if err != nil {
		return r.finish(), err
	}
	if r.enter(StateReconcile) {
		r.add(rules.Reconcile(r.scope, s.Lookup, rules.ReconcileCodes{
			Name:        "DM20",
			Difference:  "4.a",
			MissingNack: "4.b",
		}, s.ObdAddresses(), x.global, x.ds)...)
	}
	if r.enter(StateValidate) {
		for _, addr := range s.ObdAddresses() {
			if p, ok := x.accepted(addr); ok {
				r.add(rules.ValidateDM20(r.scope, s.Lookup, "3.a", "2.a", p.(*j1939.DM20))...)
			}
		}
		r.store(x)
	}
	return r.finish(), nil
}
