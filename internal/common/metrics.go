package common

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type Metrics struct {
	mu        sync.Mutex
	start     time.Time
	end       time.Time
	requests  int64
	responses int64
	nacks     int64
	timeouts  int64
	outcomes  map[string]int64
}

func NewMetrics() *Metrics {
	return &Metrics{outcomes: make(map[string]int64)}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
		m.end = time.Time{}
	}
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

func (m *Metrics) IncRequest() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.requests++
	m.mu.Unlock()
}

// AddResponses counts positive packets and NACKs heard for one request.
func (m *Metrics) AddResponses(positive, nacks int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.responses += int64(positive)
	m.nacks += int64(nacks)
	m.mu.Unlock()
}

func (m *Metrics) IncTimeout() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.timeouts++
	m.mu.Unlock()
}

// AddOutcome counts one outcome of the given severity.
func (m *Metrics) AddOutcome(severity string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int64)
	}
	m.outcomes[severity]++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcomes := make(map[string]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	return MetricsSnapshot{
		Duration:  m.elapsedLocked(),
		Requests:  m.requests,
		Responses: m.responses,
		Nacks:     m.nacks,
		Timeouts:  m.timeouts,
		Outcomes:  outcomes,
	}
}

func (m *Metrics) elapsedLocked() time.Duration {
	if m.start.IsZero() {
		return 0
	}
	if !m.end.IsZero() {
		return m.end.Sub(m.start)
	}
	return time.Since(m.start)
}

type MetricsSnapshot struct {
	Duration  time.Duration
	Requests  int64
	Responses int64
	Nacks     int64
	Timeouts  int64
	Outcomes  map[string]int64
}

func (s MetricsSnapshot) RequestsPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Requests) / s.Duration.Seconds()
}

func formatProgressLine(s MetricsSnapshot) string {
	return fmt.Sprintf("Requests: %d Responses: %d NACKs: %d Timeouts: %d FAIL: %d WARN: %d (%.1f req/s)",
		s.Requests, s.Responses, s.Nacks, s.Timeouts, s.Outcomes["FAIL"], s.Outcomes["WARN"], s.RequestsPerSecond())
}

func StartProgressPrinter(w io.Writer, m *Metrics, interval time.Duration) func() {
	if m == nil || w == nil {
		return func() {}
	}
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		lastLen := 0
		for {
			select {
			case <-ticker.C:
				line := formatProgressLine(m.Snapshot())
				pad := lastLen - len(line)
				if pad > 0 {
					line += strings.Repeat(" ", pad)
				}
				fmt.Fprintf(w, "\r%s", line)
				lastLen = len(line)
			case <-done:
				if lastLen > 0 {
					fmt.Fprintf(w, "\r%s\r\n", strings.Repeat(" ", lastLen))
				}
				return
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
