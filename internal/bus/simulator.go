package bus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"example.com/obdgate/internal/j1939"
)

type path int

const (
	pathAny path = iota
	pathGlobal
	pathDS
)

type replyKey struct {
	address int
	pgn     uint32
	path    path
}

type reply struct {
	data []byte
	ack  *j1939.ResponseCode
}

type dm7Key struct {
	address int
	spn     int
}

// RequestRecord is one request the simulator received.
type RequestRecord struct {
	PGN         uint32
	Destination int
	SPN         int
}

// Simulator is an in-process vehicle network. ECUs are scripted per
// address and PGN; requests are answered in ascending address order.
type Simulator struct {
	mu         sync.Mutex
	source     int
	addresses  map[int]bool
	replies    map[replyKey][]reply
	broadcasts map[uint32][]j1939.Packet
	dm7        map[dm7Key]reply
	impostors  []j1939.Packet
	failures   map[uint32]error
	onImpostor ImpostorFunc
	requests   []RequestRecord
}

// NewSimulator returns a simulator whose tool uses source address sa.
func NewSimulator(sa int) *Simulator {
	return &Simulator{
		source:     sa,
		addresses:  make(map[int]bool),
		replies:    make(map[replyKey][]reply),
		broadcasts: make(map[uint32][]j1939.Packet),
		dm7:        make(map[dm7Key]reply),
		failures:   make(map[uint32]error),
	}
}

func (s *Simulator) SourceAddress() int { return s.source }

func (s *Simulator) OnImpostor(fn ImpostorFunc) {
	s.mu.Lock()
	s.onImpostor = fn
	s.mu.Unlock()
}

func (s *Simulator) add(address int, pgn uint32, p path, r reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[address] = true
	k := replyKey{address: address, pgn: pgn, path: p}
	s.replies[k] = append(s.replies[k], r)
}

// Respond makes address answer pgn with data on both request paths.
// Repeated calls queue answers for successive requests; the last one sticks.
func (s *Simulator) Respond(address int, pgn uint32, data []byte) {
	s.add(address, pgn, pathAny, reply{data: clone(data)})
}

// RespondGlobal scripts the answer to global requests only.
func (s *Simulator) RespondGlobal(address int, pgn uint32, data []byte) {
	s.add(address, pgn, pathGlobal, reply{data: clone(data)})
}

// RespondDS scripts the answer to destination specific requests only.
func (s *Simulator) RespondDS(address int, pgn uint32, data []byte) {
	s.add(address, pgn, pathDS, reply{data: clone(data)})
}

// RespondPacket is Respond for an already built packet.
func (s *Simulator) RespondPacket(p j1939.Packet) {
	s.Respond(p.SourceAddress(), p.PGN(), p.Bytes())
}

// Ack makes address acknowledge pgn with code on both request paths.
func (s *Simulator) Ack(address int, pgn uint32, code j1939.ResponseCode) {
	c := code
	s.add(address, pgn, pathAny, reply{ack: &c})
}

// AckGlobal scripts an acknowledgment to global requests only.
func (s *Simulator) AckGlobal(address int, pgn uint32, code j1939.ResponseCode) {
	c := code
	s.add(address, pgn, pathGlobal, reply{ack: &c})
}

// AckDS scripts an acknowledgment to destination specific requests only.
func (s *Simulator) AckDS(address int, pgn uint32, code j1939.ResponseCode) {
	c := code
	s.add(address, pgn, pathDS, reply{ack: &c})
}

// Broadcast adds a packet heard by Collect.
func (s *Simulator) Broadcast(p j1939.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[p.SourceAddress()] = true
	s.broadcasts[p.PGN()] = append(s.broadcasts[p.PGN()], p)
}

// RespondDM7 makes address answer a DM7 for spn with a DM30 payload.
func (s *Simulator) RespondDM7(address, spn int, dm30 []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[address] = true
	s.dm7[dm7Key{address: address, spn: spn}] = reply{data: clone(dm30)}
}

// AckDM7 makes address acknowledge a DM7 for spn.
func (s *Simulator) AckDM7(address, spn int, code j1939.ResponseCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := code
	s.addresses[address] = true
	s.dm7[dm7Key{address: address, spn: spn}] = reply{ack: &c}
}

// Impersonate queues a frame sent by another device using the tool's
// address. It is delivered during the next request.
func (s *Simulator) Impersonate(pgn uint32, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.impostors = append(s.impostors, j1939.MustDecode(pgn, s.source, data))
}

// Fail makes every request for pgn return err.
func (s *Simulator) Fail(pgn uint32, err error) {
	s.mu.Lock()
	s.failures[pgn] = err
	s.mu.Unlock()
}

// Requests returns the requests received so far.
func (s *Simulator) Requests() []RequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RequestRecord, len(s.requests))
	copy(out, s.requests)
	return out
}

// begin records the request and hands queued impostor frames to the
// callback outside the lock.
func (s *Simulator) begin(ctx context.Context, rec RequestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.requests = append(s.requests, rec)
	err := s.failures[rec.PGN]
	frames := s.impostors
	s.impostors = nil
	fn := s.onImpostor
	s.mu.Unlock()
	if fn != nil {
		for _, f := range frames {
			fn(f)
		}
	}
	if err != nil {
		return fmt.Errorf("request pgn %d to %d: %w", rec.PGN, rec.Destination, err)
	}
	return nil
}

// next pops the scripted reply for (address, pgn) on the given path. The
// caller holds s.mu.
func (s *Simulator) next(address int, pgn uint32, p path) (reply, bool) {
	for _, k := range []replyKey{{address, pgn, p}, {address, pgn, pathAny}} {
		q := s.replies[k]
		if len(q) == 0 {
			continue
		}
		r := q[0]
		if len(q) > 1 {
			s.replies[k] = q[1:]
		}
		return r, true
	}
	return reply{}, false
}

func (s *Simulator) sortedAddresses() []int {
	out := make([]int, 0, len(s.addresses))
	for a := range s.addresses {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}

func (s *Simulator) materialize(address int, pgn uint32, r reply) (j1939.Packet, *j1939.Acknowledgment, error) {
	if r.ack != nil {
		return nil, j1939.NewAcknowledgment(address, *r.ack, s.source, pgn), nil
	}
	p, err := j1939.Decode(pgn, address, r.data)
	if err != nil {
		return nil, nil, err
	}
	return p, nil, nil
}

func (s *Simulator) RequestGlobal(ctx context.Context, pgn uint32) (RequestResult, error) {
	var res RequestResult
	if err := s.begin(ctx, RequestRecord{PGN: pgn, Destination: j1939.GlobalAddress}); err != nil {
		return res, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, addr := range s.sortedAddresses() {
		r, ok := s.next(addr, pgn, pathGlobal)
		if !ok {
			continue
		}
		p, ack, err := s.materialize(addr, pgn, r)
		if err != nil {
			res.Malformed = append(res.Malformed, Malformed{Address: addr, Err: err})
			continue
		}
		if ack != nil {
			res.Acks = append(res.Acks, ack)
			continue
		}
		res.Packets = append(res.Packets, p)
	}
	return res, nil
}

func (s *Simulator) RequestDS(ctx context.Context, pgn uint32, address int, timeout time.Duration) (BusResult, error) {
	var res BusResult
	if err := s.begin(ctx, RequestRecord{PGN: pgn, Destination: address}); err != nil {
		return res, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.next(address, pgn, pathDS)
	if !ok {
		return res, nil
	}
	p, ack, err := s.materialize(address, pgn, r)
	if err != nil {
		res.Malformed = err
		return res, nil
	}
	res.Packet, res.Ack = p, ack
	return res, nil
}

func (s *Simulator) RequestDM7(ctx context.Context, address, testID, spn, fmi int) (BusResult, error) {
	var res BusResult
	if err := s.begin(ctx, RequestRecord{PGN: j1939.PGNDM7, Destination: address, SPN: spn}); err != nil {
		return res, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.dm7[dm7Key{address: address, spn: spn}]
	if !ok {
		return res, nil
	}
	if r.ack != nil {
		res.Ack = j1939.NewAcknowledgment(address, *r.ack, s.source, j1939.PGNDM7)
		return res, nil
	}
	p, err := j1939.Decode(j1939.PGNDM30, address, r.data)
	if err != nil {
		res.Malformed = err
		return res, nil
	}
	res.Packet = p
	return res, nil
}

// Collect returns the scripted broadcasts immediately; the window is not
// waited out.
func (s *Simulator) Collect(ctx context.Context, pgn uint32, window time.Duration) ([]j1939.Packet, error) {
	if err := s.begin(ctx, RequestRecord{PGN: pgn, Destination: j1939.GlobalAddress}); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]j1939.Packet, len(s.broadcasts[pgn]))
	copy(out, s.broadcasts[pgn])
	sort.SliceStable(out, func(i, j int) bool { return out[i].SourceAddress() < out[j].SourceAddress() })
	return out, nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
