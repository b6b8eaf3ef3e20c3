package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"example.com/obdgate/internal/bus"
	"example.com/obdgate/internal/common"
	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/part1"
	"example.com/obdgate/internal/registry"
	"example.com/obdgate/internal/rules"
)

func newCleanSession(t *testing.T, addresses ...int) (*part1.Session, *bus.Simulator, *rules.Collector) {
	t.Helper()
	sim := bus.NewSimulator(j1939.ServiceToolAddress)
	if err := bus.CleanVehicle(addresses...).Apply(sim); err != nil {
		t.Fatalf("scenario: %v", err)
	}
	repo := registry.New(registry.VehicleInformation{VIN: "1XKYDP9X0MJ000001", VehicleModelYear: 2024, EngineModelYear: 2024, FuelType: registry.FuelDiesel})
	for _, addr := range addresses {
		repo.PutModule(registry.NewOBDModule(addr, addr))
	}
	collector := &rules.Collector{}
	sess := part1.NewSession(repo, sim, nil, collector)
	sess.Sleep = func(context.Context, time.Duration) error { return nil }
	return sess, sim, collector
}

func TestEvalCleanVehiclePasses(t *testing.T) {
	sess, _, collector := newCleanSession(t, 0, 3)
	metrics := common.NewMetrics()
	eng := NewEngine(DefaultPlan(), metrics)

	out, err := eng.Eval(context.Background(), sess)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	for _, o := range out {
		if o.Severity == rules.FAIL {
			t.Errorf("unexpected failure: %s", o.Message)
		}
	}
	if len(collector.Outcomes()) != len(out) {
		t.Fatalf("listener saw %d outcomes, engine kept %d", len(collector.Outcomes()), len(out))
	}
	rep := eng.MakeAcceptance()
	if !rep.Summary.Pass || rep.Summary.Stopped || len(rep.StepMatrix) != 18 {
		t.Fatalf("summary = %+v, rows = %d", rep.Summary, len(rep.StepMatrix))
	}
	for _, row := range rep.StepMatrix {
		if row.Status != "PASS" && row.Status != "WARN" {
			t.Fatalf("step %d status %s", row.Step, row.Status)
		}
	}
	if _, ok := sess.Repo.Latest(3, j1939.KindDM26); !ok {
		t.Fatalf("DM26 was not stored for module 3")
	}
}

func TestEvalStampsAndCounts(t *testing.T) {
	sess, sim, _ := newCleanSession(t, 0)
	sim.Ack(0, j1939.PGNDM11, j1939.NACK)
	metrics := common.NewMetrics()
	eng := NewEngine(Plan{PlanId: "dm11", Steps: []StepEntry{{Step: 10}}}, metrics)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.now = func() time.Time { return fixed }

	out, err := eng.Eval(context.Background(), sess)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(out) != 1 || !out[0].Ts.Equal(fixed) || out[0].Code != "6.1.10.3.a" {
		t.Fatalf("outcomes = %+v", out)
	}
	if got := metrics.Snapshot().Outcomes["FAIL"]; got != 1 {
		t.Fatalf("FAIL count = %d", got)
	}
	rep := eng.MakeAcceptance()
	if rep.Summary.Pass || rep.Summary.Fails != 1 || rep.StepMatrix[0].Status != "FAIL" {
		t.Fatalf("acceptance = %+v", rep)
	}
}

func TestEvalDisabledStepsAndParams(t *testing.T) {
	sess, sim, _ := newCleanSession(t, 0)
	var slept []time.Duration
	sess.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	off := false
	plan := Plan{PlanId: "partial", Steps: []StepEntry{
		{Step: 9, Enabled: &off},
		{Step: 10, DM11Delay: 250 * time.Millisecond},
	}}
	eng := NewEngine(plan, nil)
	if _, err := eng.Eval(context.Background(), sess); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(slept) != 1 || slept[0] != 250*time.Millisecond {
		t.Fatalf("slept = %v", slept)
	}
	if sess.Params.DM11Delay != 5*time.Second {
		t.Fatalf("params leaked: %v", sess.Params.DM11Delay)
	}
	for _, req := range sim.Requests() {
		if req.PGN == j1939.PGNComponentID {
			t.Fatalf("disabled step 9 sent a request")
		}
	}
	rep := eng.MakeAcceptance()
	if rep.StepMatrix[0].Status != "NOT RUN" || rep.StepMatrix[1].Status != "PASS" {
		t.Fatalf("matrix = %+v", rep.StepMatrix)
	}
}

func TestEvalHaltsOnBusFailure(t *testing.T) {
	sess, sim, _ := newCleanSession(t, 0)
	boom := errors.New("bus off")
	sim.Fail(j1939.PGNDM21, boom)
	eng := NewEngine(DefaultPlan(), nil)
	if _, err := eng.Eval(context.Background(), sess); !errors.Is(err, boom) {
		t.Fatalf("expected bus off, got %v", err)
	}
	for _, req := range sim.Requests() {
		if req.PGN == j1939.PGNDM5 {
			t.Fatalf("step 13 ran after the failure")
		}
	}
	rep := eng.MakeAcceptance()
	if rep.Summary.Pass || !strings.Contains(rep.Summary.Error, "bus off") {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if last := rep.StepMatrix[len(rep.StepMatrix)-1]; last.Step != 11 || last.Status != "ERROR" {
		t.Fatalf("last row = %+v", last)
	}
}

func TestEvalStopsWhenCancelled(t *testing.T) {
	sess, _, _ := newCleanSession(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	sess.Sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	eng := NewEngine(DefaultPlan(), nil)
	if _, err := eng.Eval(ctx, sess); err != nil {
		t.Fatalf("a stop is not an error: %v", err)
	}
	rep := eng.MakeAcceptance()
	if rep.Summary.Pass || !rep.Summary.Stopped {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if rep.StepMatrix[1].Status != "ABORTED" || rep.StepMatrix[2].Status != "NOT RUN" {
		t.Fatalf("matrix = %+v", rep.StepMatrix[:3])
	}
}

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	doc := `plan_id: quick
version: "2"
steps:
  - step: 10
    dm11_delay: 1s
  - step: 15
    enabled: false
    dm1_window: 500ms
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.PlanId != "quick" || len(p.Steps) != 2 || p.Steps[0].DM11Delay != time.Second || p.Steps[1].enabled() {
		t.Fatalf("plan = %+v", p)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("steps:\n  - step: 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPlan(bad); !errors.Is(err, part1.ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep, got %v", err)
	}
}

func TestWriteOutcomesNDJSONTimestamps(t *testing.T) {
	eng := &Engine{includeTimestampFields: true}
	eng.outcomes = []rules.Outcome{
		{Ts: time.Unix(0, 0), Part: 1, Step: 13, Code: "6.1.13.2.d", Severity: rules.FAIL, Message: "6.1.13.2.d - No OBD ECU provided DM5"},
		{Ts: time.Unix(1, 0), Part: 1, Step: 14, Severity: rules.WARN, Message: "impostor"},
	}

	outPath := filepath.Join(t.TempDir(), "outcomes.jsonl")
	if err := eng.WriteOutcomesNDJSON(outPath); err != nil {
		t.Fatalf("WriteOutcomesNDJSON failed: %v", err)
	}
	lines := readLines(t, outPath)
	if len(lines) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("unmarshal first line failed: %v", err)
	}
	if _, ok := first["ts"]; !ok || first["code"] != "6.1.13.2.d" {
		t.Fatalf("first = %v", first)
	}
	var second map[string]any
	if err := json.Unmarshal(lines[1], &second); err != nil {
		t.Fatalf("unmarshal second line failed: %v", err)
	}
	if _, ok := second["code"]; ok {
		t.Fatalf("empty code should be omitted: %v", second)
	}

	eng.SetConfigValue("outcomes.include_timestamps", "false")
	if err := eng.WriteOutcomesNDJSON(outPath); err != nil {
		t.Fatalf("WriteOutcomesNDJSON failed: %v", err)
	}
	lines = readLines(t, outPath)
	var bare map[string]any
	if err := json.Unmarshal(lines[0], &bare); err != nil {
		t.Fatal(err)
	}
	if _, ok := bare["ts"]; ok {
		t.Fatalf("ts written with timestamps disabled: %v", bare)
	}
}

func readLines(t *testing.T, path string) [][]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var out [][]byte
	for _, p := range bytes.Split(bytes.TrimSpace(data), []byte{'\n'}) {
		if p = bytes.TrimSpace(p); len(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}
