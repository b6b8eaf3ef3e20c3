package part1

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"example.com/obdgate/internal/bus"
	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/registry"
	"example.com/obdgate/internal/rules"
)

type testEnv struct {
	sim       *bus.Simulator
	repo      *registry.DataRepository
	collector *rules.Collector
	session   *Session
	slept     []time.Duration
}

func newTestEnv(t *testing.T, vehicle registry.VehicleInformation, modules ...int) *testEnv {
	t.Helper()
	env := &testEnv{
		sim:       bus.NewSimulator(j1939.ServiceToolAddress),
		repo:      registry.New(vehicle),
		collector: &rules.Collector{},
	}
	for _, addr := range modules {
		fn := addr
		if addr == 3 {
			fn = j1939.FunctionTransmission
		}
		env.repo.PutModule(registry.NewOBDModule(addr, fn))
	}
	env.session = NewSession(env.repo, env.sim, j1939.NewLookup(nil), env.collector)
	env.session.Sleep = func(ctx context.Context, d time.Duration) error {
		env.slept = append(env.slept, d)
		return nil
	}
	return env
}

func (env *testEnv) run(t *testing.T, step int) []rules.Outcome {
	t.Helper()
	return env.runCtx(t, context.Background(), step)
}

func (env *testEnv) runCtx(t *testing.T, ctx context.Context, step int) []rules.Outcome {
	t.Helper()
	c, err := Lookup(step)
	if err != nil {
		t.Fatalf("lookup step %d: %v", step, err)
	}
	out, err := c.Run(ctx, env.session)
	if err != nil {
		t.Fatalf("step %d: %v", step, err)
	}
	return out
}

func messages(outcomes []rules.Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Message
	}
	return out
}

func assertMessages(t *testing.T, got []rules.Outcome, want ...string) {
	t.Helper()
	if strings.Join(messages(got), "\n") != strings.Join(want, "\n") {
		t.Fatalf("outcomes:\n%s\nwant:\n%s", strings.Join(messages(got), "\n"), strings.Join(want, "\n"))
	}
}

var diesel2025 = registry.VehicleInformation{VIN: "3HAMKSTN0FL575012", VehicleModelYear: 2025, EngineModelYear: 2025, FuelType: registry.FuelDiesel}

func TestStepsRegisteredInOrder(t *testing.T) {
	steps := Steps()
	if len(steps) != 18 {
		t.Fatalf("registered %d steps", len(steps))
	}
	for i, c := range steps {
		n := 9 + i
		if c.StepNumber() != n || c.PartNumber() != 1 || c.TotalSteps() != 0 {
			t.Fatalf("step %d metadata: %d/%d/%d", n, c.PartNumber(), c.StepNumber(), c.TotalSteps())
		}
		if c.DisplayName() != "Part 1 Step "+strconv.Itoa(n) {
			t.Fatalf("display name = %q", c.DisplayName())
		}
	}
	if _, err := Lookup(27); !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep, got %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate registration did not panic")
		}
	}()
	Register(dm21Step{stepBase{step: 11}})
}

func TestDM11NackFromOBDModule(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0, 1, 2)
	env.sim.Ack(1, j1939.PGNDM11, j1939.NACK)
	env.sim.Ack(2, j1939.PGNDM11, j1939.BUSY)
	env.sim.Ack(0x85, j1939.PGNDM11, j1939.ACK)

	got := env.run(t, 10)
	assertMessages(t, got, "6.1.10.3.a - The request for DM11 was NACK'ed by Engine #2 (1)")
	if len(env.slept) != 1 || env.slept[0] != 5*time.Second {
		t.Fatalf("slept = %v", env.slept)
	}
}

func TestDM11AckFromOBDModuleWarns(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0)
	env.sim.Ack(0, j1939.PGNDM11, j1939.ACK)
	got := env.run(t, 10)
	assertMessages(t, got, "6.1.10.3.b - The request for DM11 was ACK'ed by Engine #1 (0)")
	if got[0].Severity != rules.WARN {
		t.Fatalf("severity = %s", got[0].Severity)
	}
}

func TestComponentIDSerialNumber(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0)
	env.sim.RespondPacket(j1939.NewComponentIdentification(0, "CMMNS", "X15", "ST109823J456", "123"))

	got := env.run(t, 9)
	assertMessages(t, got, "6.1.9.2.d - Serial number field (SPN 588) from Engine #1 (0) does not end in five numeric characters")
	if _, ok := env.repo.Get(0, j1939.KindComponentID, 9); !ok {
		t.Fatalf("component id not stored")
	}
}

func TestComponentIDNoFunctionZero(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0, 3)
	env.sim.RespondPacket(j1939.NewComponentIdentification(3, "ALLSN", "T1", "SN0000012345", "1"))
	env.sim.AckDS(0, j1939.PGNComponentID, j1939.NACK)

	got := env.run(t, 9)
	assertMessages(t, got, "6.1.9.2.a - There is no positive response from function 0")
}

func TestDM21CountersAfterClear(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0)
	env.sim.RespondPacket(j1939.NewDM21(0, 0, 0, 0, 7))
	got := env.run(t, 11)
	assertMessages(t, got, "6.1.11.2.d - Engine #1 (0) reported time since DTCs cleared is not zero (7)")
}

func TestDM5PacketsEmpty(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0, 1)
	got := env.run(t, 13)
	assertMessages(t, got,
		"6.1.13.4.b - Engine #1 (0) did not provide a response to Global query and did not provide a NACK for the DS query",
		"6.1.13.4.b - Engine #2 (1) did not provide a response to Global query and did not provide a NACK for the DS query",
		"6.1.13.2.d - No OBD ECU provided DM5",
	)
}

func TestDM5DifferenceEachModuleOnce(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0, 3)
	ccm := map[j1939.CompositeSystem]j1939.MonitoredSystem{
		j1939.ComprehensiveComponent: {System: j1939.ComprehensiveComponent, Enabled: true, Complete: true},
	}
	for _, addr := range []int{0, 3} {
		env.sim.RespondGlobal(addr, j1939.PGNDM5, j1939.NewDM5(addr, 0, 0, 0x14, ccm).Bytes())
		env.sim.RespondDS(addr, j1939.PGNDM5, j1939.NewDM5(addr, 0, 0, 0x13, ccm).Bytes())
	}
	got := env.run(t, 13)
	assertMessages(t, got,
		"6.1.13.4.a - Difference compared to data received during global request from Engine #1 (0)",
		"6.1.13.4.a - Difference compared to data received during global request from Transmission #1 (3)",
	)
	stored, ok := env.repo.Get(3, j1939.KindDM5, 13)
	if !ok || stored.(*j1939.DM5).OBDCompliance != 0x13 {
		t.Fatalf("stored DM5 = %v", stored)
	}
	var ds []int
	for _, req := range env.sim.Requests() {
		if req.Destination != j1939.GlobalAddress {
			ds = append(ds, req.Destination)
		}
	}
	if len(ds) != 2 || ds[0] != 0 || ds[1] != 3 {
		t.Fatalf("DS order = %v", ds)
	}
}

func TestDM5MalformedReplyFailsOnlyThatModule(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0, 3)
	ccm := map[j1939.CompositeSystem]j1939.MonitoredSystem{
		j1939.ComprehensiveComponent: {System: j1939.ComprehensiveComponent, Enabled: true, Complete: true},
	}
	env.sim.RespondPacket(j1939.NewDM5(0, 0, 0, 0x14, ccm))
	env.sim.Respond(3, j1939.PGNDM5, []byte{0, 0, 0x14})

	got := env.run(t, 13)
	assertMessages(t, got, "6.1.13 - Transmission #1 (3) sent a malformed DM5 response")
	if got[0].Severity != rules.FAIL {
		t.Fatalf("severity = %s", got[0].Severity)
	}
	if _, ok := env.repo.Get(0, j1939.KindDM5, 13); !ok {
		t.Fatalf("DM5 from module 0 not stored")
	}
	if _, ok := env.repo.Get(3, j1939.KindDM5, 13); ok {
		t.Fatalf("malformed DM5 stored")
	}
}

func TestDM26BoostPressureAgainstStoredDM5(t *testing.T) {
	for _, tc := range []struct {
		year    int
		misfire bool
	}{
		{2025, true},
		{2019, true},
		{2018, false},
	} {
		t.Run(strconv.Itoa(tc.year), func(t *testing.T) {
			vehicle := registry.VehicleInformation{EngineModelYear: tc.year, VehicleModelYear: tc.year, FuelType: registry.FuelDiesel}
			env := newTestEnv(t, vehicle, 0)
			supported := map[j1939.CompositeSystem]j1939.MonitoredSystem{
				j1939.BoostPressureControlSys: {System: j1939.BoostPressureControlSys, Enabled: true},
				j1939.Misfire:                 {System: j1939.Misfire, Enabled: true},
				j1939.ComprehensiveComponent:  {System: j1939.ComprehensiveComponent, Enabled: true, Complete: true},
			}
			if err := env.repo.Set(j1939.NewDM5(0, 0, 0, 0x14, supported), 13); err != nil {
				t.Fatalf("seed DM5: %v", err)
			}
			reported := map[j1939.CompositeSystem]j1939.MonitoredSystem{
				j1939.BoostPressureControlSys: {System: j1939.BoostPressureControlSys, Enabled: true, Complete: true},
				j1939.Misfire:                 {System: j1939.Misfire, Enabled: true, Complete: true},
				j1939.ComprehensiveComponent:  {System: j1939.ComprehensiveComponent, Enabled: true, Complete: true},
			}
			for _, sys := range j1939.CompositeSystems {
				if _, ok := reported[sys]; !ok {
					reported[sys] = j1939.MonitoredSystem{System: sys, Complete: true}
				}
			}
			env.sim.RespondPacket(j1939.NewDM26(0, 0, 0, reported))

			got := env.run(t, 14)
			want := []string{"6.1.14.2.a - Engine #1 (0) response for a monitor Boost pressure control sys in DM5 is reported as supported and is reported as complete/not supported DM26 response"}
			if tc.misfire {
				want = append(want, "6.1.14.2.a - Engine #1 (0) response for a monitor Misfire in DM5 is reported as supported and is reported as complete/not supported DM26 response")
			}
			assertMessages(t, got, want...)
		})
	}
}

func TestDM1BroadcastOnlyOBDModules(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0, 3)
	env.sim.Broadcast(j1939.NewDTCPacket(j1939.PGNDM1, 0, 1, 0, 0, 0))
	env.sim.Broadcast(j1939.NewDTCPacket(j1939.PGNDM1, 3, 0, 0, 0, 0))
	env.sim.Broadcast(j1939.NewDTCPacket(j1939.PGNDM1, 0x21, 1, 0, 0, 0, j1939.DiagnosticTroubleCode{SPN: 100, FMI: 1, OccurrenceCount: 1}))

	got := env.run(t, 15)
	assertMessages(t, got, "6.1.15.2.b - Engine #1 (0) did not report MIL off in its DM1 response (on)")
}

func TestDM29AgainstDM27Support(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0, 3)
	env.sim.RespondPacket(j1939.NewDTCPacket(j1939.PGNDM27, 0, 0, 0, 0, 0))
	env.sim.Ack(3, j1939.PGNDM27, j1939.NACK)
	if got := env.run(t, 21); len(got) != 0 {
		t.Fatalf("step 21: %v", messages(got))
	}
	env.sim.RespondPacket(j1939.NewDM29(0, 0, 0xFF, 0, 0, 0))
	env.sim.RespondPacket(j1939.NewDM29(3, 0, 0, 0, 0, 0))

	got := env.run(t, 22)
	assertMessages(t, got,
		"6.1.22.2.b - Engine #1 (0) response indicates number of all pending DTCs is not supported but DM27 is supported",
		"6.1.22.2.c - Transmission #1 (3) response indicates number of all pending DTCs is supported but DM27 is not supported",
	)
}

func TestDM31DSOnly(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0, 3)
	dtc := j1939.DiagnosticTroubleCode{SPN: 102, FMI: 18, OccurrenceCount: 1}
	env.sim.RespondDS(0, j1939.PGNDM31, j1939.NewDM31(0, j1939.DTCLampStatus{DTC: dtc, MIL: j1939.LampOn}).Bytes())

	got := env.run(t, 23)
	assertMessages(t, got,
		"6.1.23.2.a - Engine #1 (0) reported MIL not off for DTC 102:18 - 1 times",
		"6.1.23.2.b - Transmission #1 (3) did not provide a response to the DS DM31 query and did not provide a NACK",
	)
	for _, req := range env.sim.Requests() {
		if req.Destination == j1939.GlobalAddress {
			t.Fatalf("DM31 must not be requested globally")
		}
	}
}

func TestDM24ChangedSinceStored(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0)
	if err := env.repo.Set(j1939.NewDM24(0, j1939.SupportedSPN{SPN: 102, TestResults: true, Length: 1}), 1); err != nil {
		t.Fatalf("seed: %v", err)
	}
	env.sim.RespondPacket(j1939.NewDM24(0, j1939.SupportedSPN{SPN: 102, DataStream: true, Length: 1}))
	got := env.run(t, 26)
	assertMessages(t, got, "6.1.26.2.a - Engine #1 (0) DM24 response differs from the one stored earlier in Part 1")
}

func TestDM24NackAccepted(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0, 3)
	spn := j1939.SupportedSPN{SPN: 102, TestResults: true, Length: 1}
	if err := env.repo.Set(j1939.NewDM24(0, spn), 1); err != nil {
		t.Fatalf("seed: %v", err)
	}
	env.sim.RespondPacket(j1939.NewDM24(0, spn))
	env.sim.AckDS(3, j1939.PGNDM24, j1939.NACK)

	if got := env.run(t, 26); len(got) != 0 {
		t.Fatalf("outcomes = %v", messages(got))
	}
}

func TestDM24SilenceFails(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0)
	got := env.run(t, 26)
	assertMessages(t, got, "6.1.26.2.b - Engine #1 (0) did not provide a DM24 response to the DS query")
}

func TestImpostorWarnsOnce(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0)
	env.sim.RespondPacket(j1939.NewDM21(0, 0, 0, 0, 0))
	env.sim.Impersonate(j1939.PGNRequest, j1939.RequestPayload(j1939.PGNDM21))
	env.sim.Impersonate(j1939.PGNRequest, j1939.RequestPayload(j1939.PGNDM21))

	got := env.run(t, 11)
	if len(got) != 1 || got[0].Severity != rules.WARN || got[0].Step != 11 {
		t.Fatalf("outcomes = %v", messages(got))
	}
	if !strings.Contains(got[0].Message, "source address 249") {
		t.Fatalf("message = %q", got[0].Message)
	}
	if len(env.collector.Urgent()) != 1 {
		t.Fatalf("urgent messages = %d", len(env.collector.Urgent()))
	}
	env.sim.Impersonate(j1939.PGNRequest, j1939.RequestPayload(j1939.PGNDM21))
	if got := env.run(t, 11); len(got) != 0 {
		t.Fatalf("second run: %v", messages(got))
	}
}

func TestBusFailureStopsStep(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0)
	boom := errors.New("bus off")
	env.sim.Fail(j1939.PGNDM21, boom)
	c, _ := Lookup(11)
	if _, err := c.Run(context.Background(), env.session); !errors.Is(err, boom) {
		t.Fatalf("expected bus off, got %v", err)
	}
}

// cancellingGateway cancels the session after a number of DM7 requests.
type cancellingGateway struct {
	bus.Gateway
	cancel context.CancelFunc
	after  int
	calls  int
}

func (g *cancellingGateway) RequestDM7(ctx context.Context, address, testID, spn, fmi int) (bus.BusResult, error) {
	res, err := g.Gateway.RequestDM7(ctx, address, testID, spn, fmi)
	g.calls++
	if g.calls == g.after {
		g.cancel()
	}
	return res, err
}

func TestStopKeepsCompletedModules(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0, 3)
	for _, addr := range []int{0, 3} {
		if err := env.repo.Set(j1939.NewDM24(addr, j1939.SupportedSPN{SPN: 102, TestResults: true, Length: 1}), 1); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	stale := j1939.ScaledTestResult{TestID: 247, SPN: 102, FMI: 16, Value: 20, MaxLimit: 100}
	env.sim.RespondDM7(0, 102, j1939.NewDM30(0, stale).Bytes())
	env.sim.RespondDM7(3, 102, j1939.NewDM30(3, stale).Bytes())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.session.Gateway = &cancellingGateway{Gateway: env.sim, cancel: cancel, after: 1}

	got := env.runCtx(t, ctx, 12)
	assertMessages(t, got, "6.1.12.2.c - Test result for SPN 102 FMI 16 from Engine #1 (0) was not reset")
	for _, req := range env.sim.Requests() {
		if req.Destination == 3 {
			t.Fatalf("module 3 should not have been asked after the stop")
		}
	}
}

func TestTestResultsRequestDM24WhenNotStored(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0)
	env.sim.RespondPacket(j1939.NewDM24(0, j1939.SupportedSPN{SPN: 3226, TestResults: true, Length: 2}))
	reset := j1939.ScaledTestResult{TestID: 247, SPN: 3226, FMI: 2, Value: 0xFB00, MaxLimit: 0xFFFF, MinLimit: 0xFFFF}
	env.sim.RespondDM7(0, 3226, j1939.NewDM30(0, reset).Bytes())

	if got := env.run(t, 12); len(got) != 0 {
		t.Fatalf("outcomes = %v", messages(got))
	}
	if _, ok := env.repo.Get(0, j1939.KindDM24, 12); !ok {
		t.Fatalf("DM24 not stored")
	}
}

func TestMachineAbortsOnStop(t *testing.T) {
	env := newTestEnv(t, diesel2025, 0)
	ctx, cancel := context.WithCancel(context.Background())
	r := env.session.begin(ctx, stepBase{step: 13})
	if !r.enter(StateGlobalRequest) || r.State() != StateGlobalRequest {
		t.Fatalf("state = %s", r.State())
	}
	cancel()
	if r.enter(StateDSRequest) {
		t.Fatalf("enter succeeded after stop")
	}
	if r.State() != StateDone {
		t.Fatalf("state after stop = %s", r.State())
	}
	r.finish()
	if r.State() != StateDone {
		t.Fatalf("state after finish = %s", r.State())
	}
}
