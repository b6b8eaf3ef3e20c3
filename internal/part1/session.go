package part1

import (
	"context"
	"fmt"
	"sync"
	"time"

	"example.com/obdgate/internal/bus"
	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/registry"
	"example.com/obdgate/internal/rules"
)

// Params are the tunable waits of a session.
type Params struct {
	// DSTimeout bounds each destination specific request.
	DSTimeout time.Duration
	// DM11Delay is the wait after the DM11 clear before continuing.
	DM11Delay time.Duration
	// DM1Window is how long step 15 listens for DM1 broadcasts.
	DM1Window time.Duration
}

// DefaultParams returns the timings used on a real vehicle.
func DefaultParams() Params {
	return Params{
		DSTimeout: bus.DefaultDSTimeout,
		DM11Delay: 5 * time.Second,
		DM1Window: 3 * time.Second,
	}
}

// Session is the state shared by the steps of one run. Steps run strictly
// one after another.
type Session struct {
	Repo     *registry.DataRepository
	Gateway  bus.Gateway
	Lookup   *j1939.Lookup
	Listener rules.Listener
	Params   Params
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error

	mu           sync.Mutex
	current      rules.Scope
	impostorSeen bool
	pending      []rules.Outcome
}

// NewSession wires a session to gw and starts watching for impostors on
// the tool's source address.
func NewSession(repo *registry.DataRepository, gw bus.Gateway, lookup *j1939.Lookup, listener rules.Listener) *Session {
	if lookup == nil {
		lookup = j1939.NewLookup(nil)
	}
	s := &Session{
		Repo:     repo,
		Gateway:  gw,
		Lookup:   lookup,
		Listener: listener,
		Params:   DefaultParams(),
		Sleep:    sleepContext,
	}
	gw.OnImpostor(s.impostor)
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// impostor turns the first frame heard from the tool's own address into a
// warning for the running step and an urgent message.
func (s *Session) impostor(frame j1939.Packet) {
	s.mu.Lock()
	if s.impostorSeen {
		s.mu.Unlock()
		return
	}
	s.impostorSeen = true
	scope := s.current
	sa := s.Gateway.SourceAddress()
	o := rules.Outcome{
		Part:     scope.Part,
		Step:     scope.Step,
		Severity: rules.WARN,
		Message:  fmt.Sprintf("Another device is sending with the service tool source address %d; results from here on may be unreliable", sa),
	}
	s.pending = append(s.pending, o)
	s.mu.Unlock()
	if s.Listener != nil {
		s.Listener.OnUrgentMessage(rules.UrgentMessage{
			Title:   "Second device using the service tool address",
			Message: fmt.Sprintf("A frame (%s) was received from source address %d, which this tool is using.", frame, sa),
			Type:    rules.MessageWarning,
		})
	}
}

func (s *Session) setScope(scope rules.Scope) {
	s.mu.Lock()
	s.current = scope
	s.mu.Unlock()
}

func (s *Session) drainPending() []rules.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// ObdAddresses returns the registered OBD module addresses in ascending
// order, which is also the DS request order.
func (s *Session) ObdAddresses() []int {
	return s.Repo.ObdAddresses()
}

func (s *Session) functionZero() int {
	if addr, ok := s.Repo.FunctionZeroAddress(); ok {
		return addr
	}
	return -1
}
