package part1

import (
	"fmt"

	"example.com/obdgate/internal/bus"
	"example.com/obdgate/internal/common"
	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/rules"
)

// exchange is the global result plus the DS result of every module that
// was asked before the step stopped.
type exchange struct {
	global bus.RequestResult
	ds     map[int]bus.BusResult
}

// accepted returns the packet validated for addr: the DS answer when it was
// positive, otherwise the global one.
func (x exchange) accepted(addr int) (j1939.Packet, bool) {
	if res, ok := x.ds[addr]; ok && res.IsPositive() {
		return res.Packet, true
	}
	return x.global.PacketFrom(addr)
}

// requestGlobal sends the global request for pgn.
func (r *run) requestGlobal(pgn uint32) (bus.RequestResult, error) {
	if !r.enter(StateGlobalRequest) {
		return bus.RequestResult{}, nil
	}
	res, err := r.sess.Gateway.RequestGlobal(r.ctx, pgn)
	if err != nil {
		if r.stopped() {
			return bus.RequestResult{}, nil
		}
		return res, fmt.Errorf("%s: global request for PGN %d: %w", r.name, pgn, err)
	}
	for _, m := range res.Malformed {
		r.malformed(pgn, m.Address, m.Err)
	}
	return res, nil
}

// requestDS asks every OBD module for pgn in address order. Cancellation
// is checked before each module; modules not reached are left out.
func (r *run) requestDS(pgn uint32) (map[int]bus.BusResult, error) {
	out := make(map[int]bus.BusResult)
	if !r.enter(StateDSRequest) {
		return out, nil
	}
	for _, addr := range r.sess.ObdAddresses() {
		if r.stopped() {
			break
		}
		res, err := r.sess.Gateway.RequestDS(r.ctx, pgn, addr, r.sess.Params.DSTimeout)
		if err != nil {
			if r.stopped() {
				break
			}
			return out, fmt.Errorf("%s: DS request for PGN %d to %s: %w", r.name, pgn, r.sess.Lookup.Name(addr), err)
		}
		if res.Malformed != nil {
			r.malformed(pgn, addr, res.Malformed)
		}
		out[addr] = res
	}
	return out, nil
}

// malformed reports a reply that did not decode, once per module and PGN.
// The module's other replies are still validated.
func (r *run) malformed(pgn uint32, addr int, err error) {
	if o, ok := r.malformedOutcome(pgn, addr, err); ok {
		r.add(o)
	}
}

func (r *run) malformedOutcome(pgn uint32, addr int, err error) (rules.Outcome, bool) {
	key := malformedKey{pgn: pgn, addr: addr}
	if r.malformedSeen[key] {
		return rules.Outcome{}, false
	}
	if r.malformedSeen == nil {
		r.malformedSeen = make(map[malformedKey]bool)
	}
	r.malformedSeen[key] = true
	common.Logf("%s: %s from %s: %v", r.name, j1939.KindOf(pgn), r.sess.Lookup.Name(addr), err)
	return rules.Malformed(r.scope, r.sess.Lookup, j1939.KindOf(pgn).String(), addr), true
}

type malformedKey struct {
	pgn  uint32
	addr int
}

// requestBoth runs the global request followed by the DS requests.
func (r *run) requestBoth(pgn uint32) (exchange, error) {
	x := exchange{ds: map[int]bus.BusResult{}}
	var err error
	if x.global, err = r.requestGlobal(pgn); err != nil {
		return x, err
	}
	if x.ds, err = r.requestDS(pgn); err != nil {
		return x, err
	}
	return x, nil
}

// store saves the accepted packet of every OBD module under the step
// number.
func (r *run) store(x exchange) {
	for _, addr := range r.sess.ObdAddresses() {
		if p, ok := x.accepted(addr); ok {
			r.storePacket(p)
		}
	}
}

func (r *run) storePacket(p j1939.Packet) {
	if err := r.sess.Repo.Set(p, r.scope.Step); err != nil {
		common.Logf("%s: store %s: %v", r.name, p.Kind(), err)
	}
}
