// Package rules turns diagnostic responses into requirement-keyed outcomes.
// Everything here is a pure function of its inputs; nothing talks to the bus.
package rules

import (
	"fmt"
	"sync"
	"time"
)

type Severity string

const (
	FAIL Severity = "FAIL"
	WARN Severity = "WARN"
	INFO Severity = "INFO"
)

// Outcome is one reported result. Message already embeds the requirement
// code, e.g. "6.1.13.2.c - ...".
type Outcome struct {
	Ts       time.Time `json:"ts"`
	Part     int       `json:"part"`
	Step     int       `json:"step"`
	Code     string    `json:"code,omitempty"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s: %s", o.Severity, o.Message)
}

// Scope is the part and step outcomes are reported under.
type Scope struct {
	Part int
	Step int
}

// Code returns the requirement id for a section of this step, e.g.
// Scope{1, 13}.Code("2.c") is "6.1.13.2.c".
func (s Scope) Code(section string) string {
	return fmt.Sprintf("6.%d.%d.%s", s.Part, s.Step, section)
}

// Outcome formats one outcome under section.
func (s Scope) Outcome(sev Severity, section, format string, args ...any) Outcome {
	code := s.Code(section)
	return Outcome{
		Part:     s.Part,
		Step:     s.Step,
		Code:     code,
		Severity: sev,
		Message:  code + " - " + fmt.Sprintf(format, args...),
	}
}

func (s Scope) Fail(section, format string, args ...any) Outcome {
	return s.Outcome(FAIL, section, format, args...)
}

func (s Scope) Warn(section, format string, args ...any) Outcome {
	return s.Outcome(WARN, section, format, args...)
}

func (s Scope) Info(section, format string, args ...any) Outcome {
	return s.Outcome(INFO, section, format, args...)
}

// MessageType classifies an urgent message.
type MessageType string

const (
	MessageWarning MessageType = "WARNING"
	MessageError   MessageType = "ERROR"
)

// UrgentMessage is an out of band alert that needs operator attention.
type UrgentMessage struct {
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Type    MessageType `json:"type"`
}

// Listener is the reporting sink outcomes are forwarded to.
type Listener interface {
	AddOutcome(o Outcome)
	OnUrgentMessage(m UrgentMessage)
}

// Collector is a Listener that keeps everything it receives.
type Collector struct {
	mu       sync.Mutex
	outcomes []Outcome
	urgent   []UrgentMessage
}

func (c *Collector) AddOutcome(o Outcome) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	c.mu.Unlock()
}

func (c *Collector) OnUrgentMessage(m UrgentMessage) {
	c.mu.Lock()
	c.urgent = append(c.urgent, m)
	c.mu.Unlock()
}

func (c *Collector) Outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out
}

func (c *Collector) Urgent() []UrgentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]UrgentMessage, len(c.urgent))
	copy(out, c.urgent)
	return out
}

// Listeners fans out to several sinks in order.
type Listeners []Listener

func (ls Listeners) AddOutcome(o Outcome) {
	for _, l := range ls {
		if l != nil {
			l.AddOutcome(o)
		}
	}
}

func (ls Listeners) OnUrgentMessage(m UrgentMessage) {
	for _, l := range ls {
		if l != nil {
			l.OnUrgentMessage(m)
		}
	}
}

// Count returns how many outcomes have severity sev.
func Count(outcomes []Outcome, sev Severity) int {
	n := 0
	for _, o := range outcomes {
		if o.Severity == sev {
			n++
		}
	}
	return n
}
