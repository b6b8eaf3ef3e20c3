package rules

import (
	"strings"
	"testing"

	"example.com/obdgate/internal/bus"
	"example.com/obdgate/internal/j1939"
)

var dm5Codes = ReconcileCodes{Name: "DM5", Difference: "4.a", MissingNack: "4.b", NoOBD: "2.d", FunctionZeroAddress: 0}

func dm5(addr int, active uint8) *j1939.DM5 {
	return j1939.NewDM5(addr, active, 0, 0x14, nil)
}

func messages(outcomes []Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Message
	}
	return out
}

func TestReconcileIdenticalResponses(t *testing.T) {
	scope := Scope{Part: 1, Step: 13}
	global := bus.RequestResult{Packets: []j1939.Packet{dm5(0, 0), dm5(3, 0)}}
	ds := map[int]bus.BusResult{
		0: {Packet: dm5(0, 0)},
		3: {Packet: dm5(3, 0)},
	}
	got := Reconcile(scope, j1939.NewLookup(nil), dm5Codes, []int{0, 3}, global, ds)
	if len(got) != 0 {
		t.Fatalf("expected no outcomes, got %v", messages(got))
	}
}

func TestReconcileDifferencePerModule(t *testing.T) {
	scope := Scope{Part: 1, Step: 13}
	global := bus.RequestResult{Packets: []j1939.Packet{dm5(0, 0), dm5(1, 0), dm5(3, 0)}}
	ds := map[int]bus.BusResult{
		0: {Packet: dm5(0, 1)},
		1: {Packet: dm5(1, 0)},
		3: {Packet: dm5(3, 2)},
	}
	got := Reconcile(scope, j1939.NewLookup(nil), dm5Codes, []int{0, 1, 3}, global, ds)
	want := []string{
		"6.1.13.4.a - Difference compared to data received during global request from Engine #1 (0)",
		"6.1.13.4.a - Difference compared to data received during global request from Transmission #1 (3)",
	}
	if strings.Join(messages(got), "\n") != strings.Join(want, "\n") {
		t.Fatalf("outcomes = %v", messages(got))
	}
	for _, o := range got {
		if o.Severity != FAIL || o.Code != "6.1.13.4.a" {
			t.Fatalf("unexpected outcome %+v", o)
		}
	}
}

func TestReconcileNackSuppressesMissingNack(t *testing.T) {
	scope := Scope{Part: 1, Step: 13}
	global := bus.RequestResult{Packets: []j1939.Packet{dm5(0, 0)}}
	ds := map[int]bus.BusResult{
		0:    {Packet: dm5(0, 0)},
		1:    {Ack: j1939.NewAcknowledgment(1, j1939.NACK, 0xF9, j1939.PGNDM5)},
		3:    {},
		0x17: {Ack: j1939.NewAcknowledgment(0x17, j1939.BUSY, 0xF9, j1939.PGNDM5)},
	}
	got := Reconcile(scope, j1939.NewLookup(nil), dm5Codes, []int{0, 1, 3, 0x17}, global, ds)
	want := []string{
		"6.1.13.4.b - Transmission #1 (3) did not provide a response to Global query and did not provide a NACK for the DS query",
		"6.1.13.4.b - Instrument Cluster #1 (23) did not provide a response to Global query and did not provide a NACK for the DS query",
	}
	if strings.Join(messages(got), "\n") != strings.Join(want, "\n") {
		t.Fatalf("outcomes = %v", messages(got))
	}
}

func TestReconcileEmptyGlobalReportsBoth(t *testing.T) {
	scope := Scope{Part: 1, Step: 13}
	ds := map[int]bus.BusResult{0: {}, 1: {}}
	got := Reconcile(scope, j1939.NewLookup(nil), dm5Codes, []int{0, 1}, bus.RequestResult{}, ds)
	want := []string{
		"6.1.13.4.b - Engine #1 (0) did not provide a response to Global query and did not provide a NACK for the DS query",
		"6.1.13.4.b - Engine #2 (1) did not provide a response to Global query and did not provide a NACK for the DS query",
		"6.1.13.2.d - No OBD ECU provided DM5",
	}
	if strings.Join(messages(got), "\n") != strings.Join(want, "\n") {
		t.Fatalf("outcomes = %v", messages(got))
	}
}

func TestReconcileSkipsUnrequestedModules(t *testing.T) {
	scope := Scope{Part: 1, Step: 13}
	global := bus.RequestResult{Packets: []j1939.Packet{dm5(0, 0)}}
	ds := map[int]bus.BusResult{0: {Packet: dm5(0, 0)}}
	got := Reconcile(scope, j1939.NewLookup(nil), dm5Codes, []int{0, 1, 3}, global, ds)
	if len(got) != 0 {
		t.Fatalf("cancelled modules must not fail: %v", messages(got))
	}
}

func TestReconcileFunctionZero(t *testing.T) {
	scope := Scope{Part: 1, Step: 9}
	codes := ReconcileCodes{Name: "Component ID", FunctionZero: "2.a", FunctionZeroAddress: 0}
	cid := j1939.NewComponentIdentification(3, "ALLSN", "T1", "SN0000012345", "1")

	cases := []struct {
		name   string
		global bus.RequestResult
		ds     map[int]bus.BusResult
		fails  int
	}{
		{"engine answers globally", bus.RequestResult{Packets: []j1939.Packet{j1939.NewComponentIdentification(0, "CMMNS", "X15", "SN0000012345", "1")}}, map[int]bus.BusResult{}, 0},
		{"engine answers DS only", bus.RequestResult{Packets: []j1939.Packet{cid}}, map[int]bus.BusResult{0: {Packet: j1939.NewComponentIdentification(0, "CMMNS", "X15", "SN0000012345", "1")}}, 0},
		{"engine silent", bus.RequestResult{Packets: []j1939.Packet{cid}}, map[int]bus.BusResult{0: {}}, 1},
		{"nothing at all", bus.RequestResult{}, map[int]bus.BusResult{}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Reconcile(scope, j1939.NewLookup(nil), codes, []int{0, 3}, tc.global, tc.ds)
			if len(got) != tc.fails {
				t.Fatalf("outcomes = %v", messages(got))
			}
			if tc.fails == 1 && got[0].Message != "6.1.9.2.a - There is no positive response from function 0" {
				t.Fatalf("message = %q", got[0].Message)
			}
		})
	}
}
