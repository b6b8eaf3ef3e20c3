// Package harness runs a plan of Part 1 steps against a session and keeps
// the outcomes for the acceptance report.
package harness

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/obdgate/internal/common"
	"example.com/obdgate/internal/part1"
	"example.com/obdgate/internal/registry"
	"example.com/obdgate/internal/rules"
)

// StepEntry selects one step of the plan. Zero durations keep the session
// defaults.
type StepEntry struct {
	Step      int           `yaml:"step" json:"step"`
	Enabled   *bool         `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	DSTimeout time.Duration `yaml:"ds_timeout,omitempty" json:"dsTimeout,omitempty"`
	DM11Delay time.Duration `yaml:"dm11_delay,omitempty" json:"dm11Delay,omitempty"`
	DM1Window time.Duration `yaml:"dm1_window,omitempty" json:"dm1Window,omitempty"`
}

func (s StepEntry) enabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Plan is the ordered list of steps a run executes.
type Plan struct {
	PlanId  string      `yaml:"plan_id" json:"planId"`
	Version string      `yaml:"version" json:"version"`
	Steps   []StepEntry `yaml:"steps" json:"steps"`
}

// DefaultPlan runs every registered step once.
func DefaultPlan() Plan {
	p := Plan{PlanId: "j1939-84-part1", Version: "1"}
	for _, c := range part1.Steps() {
		p.Steps = append(p.Steps, StepEntry{Step: c.StepNumber()})
	}
	return p
}

// LoadPlan reads a YAML (or JSON) plan. Unknown step numbers are rejected
// here rather than part way through a run.
func LoadPlan(path string) (Plan, error) {
	var p Plan
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("parse plan %s: %w", path, err)
	}
	for _, s := range p.Steps {
		if _, err := part1.Lookup(s.Step); err != nil {
			return p, fmt.Errorf("plan %s: %w", path, err)
		}
	}
	return p, nil
}

// StepStatus is one row of the acceptance step matrix.
type StepStatus struct {
	Step     int    `json:"step"`
	Name     string `json:"name"`
	Status   string `json:"status"` // PASS|WARN|FAIL|ABORTED|ERROR|NOT RUN
	Fails    int    `json:"fails"`
	Warnings int    `json:"warnings"`
	Infos    int    `json:"infos"`
}

type AcceptanceReport struct {
	Summary struct {
		PlanId   string `json:"planId"`
		Total    int    `json:"total"`
		Fails    int    `json:"fails"`
		Warnings int    `json:"warnings"`
		Pass     bool   `json:"pass"`
		Stopped  bool   `json:"stopped,omitempty"`
		Error    string `json:"error,omitempty"`
	} `json:"summary"`
	Vehicle    *registry.VehicleInformation `json:"vehicle,omitempty"`
	StepMatrix []StepStatus                 `json:"stepMatrix"`
	Outcomes   []rules.Outcome              `json:"outcomes,omitempty"`
}

type stepRun struct {
	entry   StepEntry
	name    string
	ran     bool
	aborted bool
	failed  bool
}

type Engine struct {
	plan                   Plan
	metrics                *common.Metrics
	now                    func() time.Time
	outcomes               []rules.Outcome
	runs                   []stepRun
	stopped                bool
	runErr                 error
	includeTimestampFields bool
}

func NewEngine(plan Plan, metrics *common.Metrics) *Engine {
	return &Engine{
		plan:                   plan,
		metrics:                metrics,
		now:                    time.Now,
		includeTimestampFields: true,
	}
}

// Eval runs the enabled steps in plan order. Outcomes are stamped, handed
// to the session listener and kept. A step error is a bus failure: the run
// halts and the error is returned along with everything gathered so far.
// Cancelling ctx stops the run without an error.
func (e *Engine) Eval(ctx context.Context, sess *part1.Session) ([]rules.Outcome, error) {
	if sess == nil {
		return nil, errors.New("nil session")
	}
	e.outcomes, e.runs, e.stopped, e.runErr = nil, nil, false, nil
	for _, entry := range e.plan.Steps {
		c, err := part1.Lookup(entry.Step)
		if err != nil {
			e.runErr = err
			return e.outcomes, err
		}
		sr := stepRun{entry: entry, name: c.DisplayName()}
		if !entry.enabled() || e.stopped {
			e.runs = append(e.runs, sr)
			continue
		}
		if ctx.Err() != nil {
			e.stopped = true
			e.runs = append(e.runs, sr)
			continue
		}
		common.Logf("%s: start", c.DisplayName())
		saved := sess.Params
		applyParams(&sess.Params, entry)
		out, err := c.Run(ctx, sess)
		sess.Params = saved
		sr.ran = true
		sr.aborted = ctx.Err() != nil
		sr.failed = err != nil
		e.runs = append(e.runs, sr)
		for _, o := range out {
			if o.Ts.IsZero() {
				o.Ts = e.now()
			}
			e.outcomes = append(e.outcomes, o)
			e.metrics.AddOutcome(string(o.Severity))
			if sess.Listener != nil {
				sess.Listener.AddOutcome(o)
			}
		}
		if err != nil {
			common.Logf("%s: %v", c.DisplayName(), err)
			e.runErr = err
			return e.outcomes, err
		}
		if sr.aborted {
			common.Logf("%s: stopped", c.DisplayName())
			e.stopped = true
		}
	}
	return e.outcomes, nil
}

func applyParams(p *part1.Params, entry StepEntry) {
	if entry.DSTimeout > 0 {
		p.DSTimeout = entry.DSTimeout
	}
	if entry.DM11Delay > 0 {
		p.DM11Delay = entry.DM11Delay
	}
	if entry.DM1Window > 0 {
		p.DM1Window = entry.DM1Window
	}
}

// Outcomes returns what the last Eval produced.
func (e *Engine) Outcomes() []rules.Outcome {
	return e.outcomes
}

func (e *Engine) WriteOutcomesNDJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, o := range e.outcomes {
		var b []byte
		if e.includeTimestampFields {
			b, err = json.Marshal(o)
		} else {
			b, err = json.Marshal(withoutTimestamp(o))
		}
		if err != nil {
			return err
		}
		w.Write(b)
		w.WriteString("\n")
	}
	return w.Flush()
}

type outcomeNoTimestamp struct {
	Part     int            `json:"part"`
	Step     int            `json:"step"`
	Code     string         `json:"code,omitempty"`
	Severity rules.Severity `json:"severity"`
	Message  string         `json:"message"`
}

func withoutTimestamp(o rules.Outcome) outcomeNoTimestamp {
	return outcomeNoTimestamp{Part: o.Part, Step: o.Step, Code: o.Code, Severity: o.Severity, Message: o.Message}
}

func (e *Engine) SetConfigValue(key string, value any) {
	if e == nil {
		return
	}
	switch key {
	case "outcomes.include_timestamps":
		switch v := value.(type) {
		case bool:
			e.includeTimestampFields = v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				e.includeTimestampFields = b
			}
		default:
			if s, ok := value.(fmt.Stringer); ok {
				if b, err := strconv.ParseBool(s.String()); err == nil {
					e.includeTimestampFields = b
				}
			}
		}
	}
}

// MakeAcceptance summarizes the last Eval. The run passes when no step
// failed, nothing stopped it early and the bus did not fail.
func (e *Engine) MakeAcceptance() AcceptanceReport {
	var rep AcceptanceReport
	rep.Summary.PlanId = e.plan.PlanId
	rep.StepMatrix = make([]StepStatus, len(e.runs))
	perStep := make(map[int]*StepStatus)
	for i, sr := range e.runs {
		rep.StepMatrix[i] = StepStatus{Step: sr.entry.Step, Name: sr.name, Status: "NOT RUN"}
		if sr.ran {
			rep.StepMatrix[i].Status = "PASS"
		}
		perStep[sr.entry.Step] = &rep.StepMatrix[i]
	}
	for _, o := range e.outcomes {
		switch o.Severity {
		case rules.FAIL:
			rep.Summary.Fails++
		case rules.WARN:
			rep.Summary.Warnings++
		}
		st, ok := perStep[o.Step]
		if !ok {
			continue
		}
		switch o.Severity {
		case rules.FAIL:
			st.Fails++
			st.Status = "FAIL"
		case rules.WARN:
			st.Warnings++
			if st.Status == "PASS" {
				st.Status = "WARN"
			}
		default:
			st.Infos++
		}
	}
	for i, sr := range e.runs {
		switch {
		case sr.failed:
			rep.StepMatrix[i].Status = "ERROR"
		case sr.aborted && rep.StepMatrix[i].Status != "FAIL":
			rep.StepMatrix[i].Status = "ABORTED"
		}
	}
	rep.Summary.Total = len(e.outcomes)
	rep.Summary.Stopped = e.stopped
	if e.runErr != nil {
		rep.Summary.Error = e.runErr.Error()
	}
	rep.Summary.Pass = rep.Summary.Fails == 0 && !e.stopped && e.runErr == nil
	rep.Outcomes = e.outcomes
	return rep
}
