package part1

import (
	"context"

	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// componentIDStep checks Component Identification (PGN 65259).
type componentIDStep struct{ stepBase }

func init() { Register(componentIDStep{stepBase{step: 9}}) }

var componentIDSections = rules.ComponentIDSections{
	Unprintable:   "2.b",
	SerialMissing: "2.c",
	SerialDigits:  "2.d",
	SerialLength:  "3.a",
	MakeLength:    "3.b",
	ModelLength:   "3.c",
}

func (c componentIDStep) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	x, err := r.requestBoth(j1939.PGNComponentID)
	if err != nil {
		return r.finish(), err
	}
	if r.enter(StateReconcile) {
		r.add(rules.Reconcile(r.scope, s.Lookup, rules.ReconcileCodes{
			Name:                "Component ID",
			Difference:          "4.a",
			MissingNack:         "4.b",
			FunctionZero:        "2.a",
			FunctionZeroAddress: s.functionZero(),
		}, s.ObdAddresses(), x.global, x.ds)...)
	}
	if r.enter(StateValidate) {
		for _, addr := range s.ObdAddresses() {
			p, ok := x.accepted(addr)
			if !ok {
				continue
			}
			r.add(rules.ValidateComponentID(r.scope, s.Lookup, componentIDSections, p.(*j1939.ComponentIdentification))...)
		}
		r.store(x)
	}
	return r.finish(), nil
}
