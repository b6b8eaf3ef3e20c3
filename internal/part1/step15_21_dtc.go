package part1

import (
	"context"
	"fmt"

	"example.com/obdgate/internal/bus"
	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// dtcStep checks one of the DTC messages sharing the DM1 layout: no codes
// and the MIL off. DM1 is broadcast and collected; the others are
// requested globally and DS.
type dtcStep struct {
	stepBase
	pgn        uint32
	broadcast  bool
	requireOBD bool // fail when no OBD module answered
}

func init() {
	Register(dtcStep{stepBase: stepBase{step: 15}, pgn: j1939.PGNDM1, broadcast: true, requireOBD: true})
	Register(dtcStep{stepBase: stepBase{step: 16}, pgn: j1939.PGNDM2})
	Register(dtcStep{stepBase: stepBase{step: 17}, pgn: j1939.PGNDM6, requireOBD: true})
	Register(dtcStep{stepBase: stepBase{step: 18}, pgn: j1939.PGNDM12, requireOBD: true})
	Register(dtcStep{stepBase: stepBase{step: 19}, pgn: j1939.PGNDM23})
	Register(dtcStep{stepBase: stepBase{step: 20}, pgn: j1939.PGNDM28, requireOBD: true})
	Register(dtcStep{stepBase: stepBase{step: 21}, pgn: j1939.PGNDM27})
}

func (c dtcStep) name() string { return j1939.KindOf(c.pgn).String() }

func (c dtcStep) Run(ctx context.Context, s *Session) ([]rules.Outcome, error) {
	r := s.begin(ctx, c.stepBase)
	var x exchange
	var err error
	if c.broadcast {
		x, err = c.collect(r)
	} else {
		x, err = r.requestBoth(c.pgn)
	}
	if err != nil {
		return r.finish(), err
	}
	if !c.broadcast && r.enter(StateReconcile) {
		codes := rules.ReconcileCodes{Name: c.name(), Difference: "4.a", MissingNack: "4.b"}
		if c.requireOBD {
			codes.NoOBD = "2.c"
		}
		r.add(rules.Reconcile(r.scope, s.Lookup, codes, s.ObdAddresses(), x.global, x.ds)...)
	}
	if r.enter(StateValidate) {
		answered := false
		for _, addr := range s.ObdAddresses() {
			p, ok := x.accepted(addr)
			if !ok {
				continue
			}
			answered = true
			r.add(rules.ValidateDTCPacket(r.scope, s.Lookup, "2.a", "2.b", p.(*j1939.DTCPacket))...)
		}
		if c.broadcast && c.requireOBD && !answered && len(s.ObdAddresses()) > 0 {
			r.add(r.scope.Fail("2.c", "No OBD ECU provided %s", c.name()))
		}
		r.store(x)
	}
	return r.finish(), nil
}

// collect listens for the broadcast and keeps the last packet heard from
// each module.
func (c dtcStep) collect(r *run) (exchange, error) {
	x := exchange{ds: map[int]bus.BusResult{}}
	if !r.enter(StateGlobalRequest) {
		return x, nil
	}
	packets, err := r.sess.Gateway.Collect(r.ctx, c.pgn, r.sess.Params.DM1Window)
	if err != nil {
		if r.stopped() {
			return x, nil
		}
		return x, fmt.Errorf("%s: collect %s: %w", r.name, c.name(), err)
	}
	latest := make(map[int]int)
	for _, p := range packets {
		if i, ok := latest[p.SourceAddress()]; ok {
			x.global.Packets[i] = p
			continue
		}
		latest[p.SourceAddress()] = len(x.global.Packets)
		x.global.Packets = append(x.global.Packets, p)
	}
	return x, nil
}
