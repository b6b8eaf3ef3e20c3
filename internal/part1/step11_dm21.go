package part1

import (
	"context"

	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// dm21Step checks that the DM21 distance and time counters were reset.
type dm21Step struct{ stepBase }

func init() { Register(dm21Step{stepBase{step: 11}}) }

func (c dm21Step) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	x, err := r.requestBoth(j1939.PGNDM21)
	if err != nil {
		return r.finish(), err
	}
	if r.enter(StateReconcile) {
		r.add(rules.Reconcile(r.scope, s.Lookup, rules.ReconcileCodes{
			Name:        "DM21",
			Difference:  "4.a",
			MissingNack: "4.b",
		}, s.ObdAddresses(), x.global, x.ds)...)
	}
	if r.enter(StateValidate) {
		for _, addr := range s.ObdAddresses() {
			if p, ok := x.accepted(addr); ok {
				r.add(rules.ValidateDM21(r.scope, s.Lookup, [4]string{"2.a", "2.b", "2.c", "2.d"}, p.(*j1939.DM21))...)
			}
		}
		r.store(x)
	}
	return r.finish(), nil
}
