package part1

import (
	"context"

	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// dm24Step re-requests SPN support and compares it with the copy stored
// earlier in the part.
type dm24Step struct{ stepBase }

func init() { Register(dm24Step{stepBase{step: 26}}) }

func (c dm24Step) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	stored := make(map[int]*j1939.DM24)
	for _, addr := range s.ObdAddresses() {
		if p, ok := s.Repo.Latest(addr, j1939.KindDM24); ok {
			stored[addr] = p.(*j1939.DM24)
		}
	}
	ds, err := r.requestDS(j1939.PGNDM24)
	if err != nil {
		return r.finish(), err
	}
	if r.enter(StateValidate) {
		for _, addr := range s.ObdAddresses() {
			res, asked := ds[addr]
			if !asked {
				continue
			}
			current, ok := res.Packet.(*j1939.DM24)
			switch {
			case ok:
			case res.IsNack(), res.Malformed != nil:
				continue
			default:
				r.add(r.scope.Fail("2.b", "%s did not provide a DM24 response to the DS query", s.Lookup.Name(addr)))
				continue
			}
			r.add(rules.ValidateSPNSupport(r.scope, s.Lookup, "2.a", stored[addr], current)...)
			r.storePacket(current)
		}
	}
	return r.finish(), nil
}
