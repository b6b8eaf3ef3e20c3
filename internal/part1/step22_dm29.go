package part1

import (
	"context"

	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// dm29Step checks the regulated DTC counts and their agreement with each
// module's DM27 support seen in step 21.
type dm29Step struct{ stepBase }

func init() { Register(dm29Step{stepBase{step: 22}}) }

func (c dm29Step) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	x, err := r.requestBoth(j1939.PGNDM29)
	if err != nil {
		return r.finish(), err
	}
	if r.enter(StateReconcile) {
		r.add(rules.Reconcile(r.scope, s.Lookup, rules.ReconcileCodes{
			Name:        "DM29",
			Difference:  "4.a",
			MissingNack: "4.b",
		}, s.ObdAddresses(), x.global, x.ds)...)
	}
	if r.enter(StateValidate) {
		for _, addr := range s.ObdAddresses() {
			p, ok := x.accepted(addr)
			if !ok {
				continue
			}
			_, dm27 := s.Repo.Latest(addr, j1939.KindDM27)
			r.add(rules.ValidateDM29(r.scope, s.Lookup, "2.a", "2.b", "2.c", p.(*j1939.DM29), dm27)...)
		}
		r.store(x)
	}
	return r.finish(), nil
}
