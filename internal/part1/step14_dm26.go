package part1

import (
	"context"

	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// dm26Step checks Diagnostic Readiness 3 against the DM5 stored in step 13.
type dm26Step struct{ stepBase }

func init() { Register(dm26Step{stepBase{step: 14}}) }

var dm26MonitorSections = rules.MonitorSections{
	SupportedComplete:     "2.a",
	UnsupportedEnabled:    "2.b",
	ComprehensiveDisabled: "2.c",
	UnsupportedIncomplete: "2.d",
}

func (c dm26Step) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	x, err := r.requestBoth(j1939.PGNDM26)
	if err != nil {
		return r.finish(), err
	}
	if r.enter(StateReconcile) {
		r.add(rules.Reconcile(r.scope, s.Lookup, rules.ReconcileCodes{
			Name:        "DM26",
			Difference:  "5.a",
			MissingNack: "5.b",
			NoOBD:       "2.g",
		}, s.ObdAddresses(), x.global, x.ds)...)
	}
	if r.enter(StateValidate) {
		vehicle := s.Repo.VehicleInformation()
		var monitors [][]j1939.MonitoredSystem
		for _, addr := range s.ObdAddresses() {
			p, ok := x.accepted(addr)
			if !ok {
				continue
			}
			dm26 := p.(*j1939.DM26)
			if stored, ok := s.Repo.Latest(addr, j1939.KindDM5); ok {
				r.add(rules.ValidateMonitors(r.scope, s.Lookup, dm26MonitorSections, vehicle, stored.(*j1939.DM5), dm26)...)
			}
			r.add(rules.ValidateDM26Counters(r.scope, s.Lookup, "2.e", "2.f", dm26)...)
			monitors = append(monitors, rules.DM26Monitors(dm26))
		}
		r.add(rules.ValidateDuplicateMonitors(r.scope, "3.a", monitors)...)
		r.store(x)
	}
	return r.finish(), nil
}
