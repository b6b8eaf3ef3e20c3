package part1

import (
	"context"
	"fmt"

	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// dm11Step clears diagnostic information with a global DM11 and waits for
// the modules to settle.
type dm11Step struct{ stepBase }

func init() { Register(dm11Step{stepBase{step: 10}}) }

func (c dm11Step) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	res, err := r.requestGlobal(j1939.PGNDM11)
	if err != nil {
		return r.finish(), err
	}
	if r.enter(StateValidate) {
		for _, ack := range res.Acks {
			addr := ack.SourceAddress()
			if !s.Repo.IsObdModule(addr) {
				continue
			}
			switch ack.Response {
			case j1939.NACK:
				r.add(r.scope.Fail("3.a", "The request for DM11 was NACK'ed by %s", s.Lookup.Name(addr)))
			case j1939.ACK:
				r.add(r.scope.Warn("3.b", "The request for DM11 was ACK'ed by %s", s.Lookup.Name(addr)))
			}
		}
		if err := s.Sleep(ctx, s.Params.DM11Delay); err != nil && ctx.Err() == nil {
			return r.finish(), fmt.Errorf("%s: wait after DM11: %w", r.name, err)
		}
	}
	return r.finish(), nil
}
