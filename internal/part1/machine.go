package part1

import (
	"context"

	"github.com/looplab/fsm"

	"example.com/obdgate/internal/common"
	"example.com/obdgate/internal/rules"
)

// Step states. Not every step visits every state; a step that only sends
// DS requests goes straight from init to ds_request.
const (
	StateInit          = "init"
	StateGlobalRequest = "global_request"
	StateDSRequest     = "ds_request"
	StateReconcile     = "reconcile"
	StateValidate      = "validate"
	StateReport        = "report"
	StateDone          = "done"

	eventAbort = "abort"
)

func newStepFSM(name string) *fsm.FSM {
	return fsm.NewFSM(
		StateInit,
		fsm.Events{
			{Name: StateGlobalRequest, Src: []string{StateInit}, Dst: StateGlobalRequest},
			{Name: StateDSRequest, Src: []string{StateInit, StateGlobalRequest}, Dst: StateDSRequest},
			{Name: StateReconcile, Src: []string{StateGlobalRequest, StateDSRequest}, Dst: StateReconcile},
			{Name: StateValidate, Src: []string{StateInit, StateGlobalRequest, StateDSRequest, StateReconcile}, Dst: StateValidate},
			{Name: StateReport, Src: []string{StateValidate}, Dst: StateReport},
			{Name: StateDone, Src: []string{StateReport}, Dst: StateDone},
			{Name: eventAbort, Src: []string{StateInit, StateGlobalRequest, StateDSRequest, StateReconcile, StateValidate, StateReport}, Dst: StateDone},
		},
		fsm.Callbacks{
			"after_" + eventAbort: func(_ context.Context, e *fsm.Event) {
				common.Logf("%s: stopped in %s", name, e.Src)
			},
		},
	)
}

// run is the bookkeeping of one step execution: its state machine, the
// outcomes gathered so far and the session it reports into.
type run struct {
	ctx      context.Context
	name     string
	sess     *Session
	scope    rules.Scope
	machine  *fsm.FSM
	outcomes []rules.Outcome

	malformedSeen map[malformedKey]bool
}

func (s *Session) begin(ctx context.Context, b stepBase) *run {
	s.setScope(b.scope())
	return &run{ctx: ctx, name: b.DisplayName(), sess: s, scope: b.scope(), machine: newStepFSM(b.DisplayName())}
}

// enter moves to state. It returns false, after aborting, when the
// session was stopped.
func (r *run) enter(state string) bool {
	if r.stopped() {
		return false
	}
	// transitions are bookkeeping; they must not fail on a cancelled ctx
	if err := r.machine.Event(context.WithoutCancel(r.ctx), state); err != nil {
		common.Logf("%s: transition to %s: %v", r.name, state, err)
	}
	return true
}

// stopped reports cancellation, aborting the machine the first time.
func (r *run) stopped() bool {
	if r.ctx.Err() == nil {
		return false
	}
	if !r.machine.Is(StateDone) {
		_ = r.machine.Event(context.WithoutCancel(r.ctx), eventAbort)
	}
	return true
}

func (r *run) add(outcomes ...rules.Outcome) {
	r.outcomes = append(r.outcomes, outcomes...)
}

// finish reports and returns everything gathered, including outcomes of a
// step that was stopped part way.
func (r *run) finish() []rules.Outcome {
	if !r.machine.Is(StateDone) {
		if r.machine.Is(StateValidate) || r.enter(StateValidate) {
			r.enter(StateReport)
			r.enter(StateDone)
		}
	}
	r.add(r.sess.drainPending()...)
	return r.outcomes
}

// State exposes the machine state for tests.
func (r *run) State() string {
	return r.machine.Current()
}
