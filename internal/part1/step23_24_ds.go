package part1

import (
	"context"

	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// dsOnlyStep requests a message from each OBD module by DS request only.
// Silence without a NACK fails; positive answers go through validate.
type dsOnlyStep struct {
	stepBase
	pgn      uint32
	validate func(scope rules.Scope, lookup *j1939.Lookup, p j1939.Packet) []rules.Outcome
}

func init() {
	Register(dsOnlyStep{stepBase: stepBase{step: 23}, pgn: j1939.PGNDM31,
		validate: func(scope rules.Scope, lookup *j1939.Lookup, p j1939.Packet) []rules.Outcome {
			return rules.ValidateDM31(scope, lookup, "2.a", p.(*j1939.DM31))
		}})
	Register(dsOnlyStep{stepBase: stepBase{step: 24}, pgn: j1939.PGNDM25,
		validate: func(scope rules.Scope, lookup *j1939.Lookup, p j1939.Packet) []rules.Outcome {
			return rules.ValidateDM25(scope, lookup, "2.a", p.(*j1939.DM25))
		}})
}

func (c dsOnlyStep) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	ds, err := r.requestDS(c.pgn)
	if err != nil {
		return r.finish(), err
	}
	if r.enter(StateValidate) {
		name := j1939.KindOf(c.pgn).String()
		for _, addr := range s.ObdAddresses() {
			res, asked := ds[addr]
			switch {
			case !asked:
			case res.IsPositive():
				r.add(c.validate(r.scope, s.Lookup, res.Packet)...)
				r.storePacket(res.Packet)
			case res.Malformed != nil:
			case !res.IsNack():
				r.add(r.scope.Fail("2.b", "%s did not provide a response to the DS %s query and did not provide a NACK", s.Lookup.Name(addr), name))
			}
		}
	}
	return r.finish(), nil
}
