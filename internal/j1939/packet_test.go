package j1939

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDecodeAcknowledgment(t *testing.T) {
	data := []byte{0x01, 0xFF, 0xFF, 0xFF, 0xF9, 0xD3, 0xFE, 0x00}
	p, err := Decode(PGNAcknowledgment, 1, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ack, ok := p.(*Acknowledgment)
	if !ok {
		t.Fatalf("expected *Acknowledgment, got %T", p)
	}
	if ack.Response != NACK || ack.AcknowledgePGN != PGNDM11 || ack.AddressAcked != 0xF9 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if ack.SourceAddress() != 1 {
		t.Fatalf("source = %d, want 1", ack.SourceAddress())
	}

	built := NewAcknowledgment(1, NACK, 0xF9, PGNDM11)
	if !Equal(built, ack) {
		t.Fatalf("NewAcknowledgment bytes % X != % X", built.Bytes(), ack.Bytes())
	}
}

func TestDecodeShortPacket(t *testing.T) {
	_, err := Decode(PGNDM5, 0, []byte{0, 0, 0})
	if !errors.Is(err, ErrShortPacket) {
		t.Fatalf("expected ErrShortPacket, got %v", err)
	}
}

func TestDTCRoundTrip(t *testing.T) {
	cases := []DiagnosticTroubleCode{
		{SPN: 102, FMI: 18, OccurrenceCount: 1},
		{SPN: 524287 - 1, FMI: 31, OccurrenceCount: 127, ConversionMethod: 1},
		{SPN: 0x40000 + 157, FMI: 3, OccurrenceCount: 5},
	}
	for _, dtc := range cases {
		got := decodeDTC(dtc.Encode())
		if got != dtc {
			t.Fatalf("round trip %+v -> %+v", dtc, got)
		}
	}
}

func TestDTCPacketLampsAndCodes(t *testing.T) {
	dtc := DiagnosticTroubleCode{SPN: 609, FMI: 19, OccurrenceCount: 1}
	p := NewDTCPacket(PGNDM12, 0, 1, 0, 0, 0, dtc)
	if p.Kind() != KindDM12 {
		t.Fatalf("kind = %s, want DM12", p.Kind())
	}
	if p.MIL != LampOn {
		t.Fatalf("MIL = %s, want on", p.MIL)
	}
	if len(p.DTCs) != 1 || p.DTCs[0] != dtc {
		t.Fatalf("DTCs = %+v", p.DTCs)
	}

	empty, err := Decode(PGNDM6, 3, []byte{0x00, 0xFF, 0, 0, 0, 0, 0xFF, 0xFF})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	dm6 := empty.(*DTCPacket)
	if dm6.HasDTCs() {
		t.Fatalf("expected no DTCs, got %+v", dm6.DTCs)
	}
	if dm6.MIL != LampOff {
		t.Fatalf("MIL = %s, want off", dm6.MIL)
	}
	if !strings.Contains(dm6.String(), "No DTCs") {
		t.Fatalf("unexpected String(): %s", dm6.String())
	}
}

func TestLampStatusFlash(t *testing.T) {
	cases := []struct {
		onOff, flash uint8
		want         LampStatus
	}{
		{0, 3, LampOff},
		{1, 3, LampOn},
		{1, 0, LampSlowFlash},
		{1, 1, LampFastFlash},
		{2, 3, LampError},
		{3, 3, LampNotAvailable},
	}
	for _, tc := range cases {
		if got := lampStatus(tc.onOff, tc.flash); got != tc.want {
			t.Fatalf("lampStatus(%d,%d) = %s, want %s", tc.onOff, tc.flash, got, tc.want)
		}
	}
}

func TestMonitorEncodingRoundTrip(t *testing.T) {
	states := map[CompositeSystem]MonitoredSystem{}
	for i, sys := range CompositeSystems {
		states[sys] = MonitoredSystem{System: sys, Enabled: i%2 == 0, Complete: i%3 == 0}
	}
	dm5 := NewDM5(0, 0, 0, 0x14, states)
	dm26 := NewDM26(0, 0, 0, states)
	for _, sys := range CompositeSystems {
		want := states[sys]
		if got := dm5.Monitor(sys); got.Enabled != want.Enabled || got.Complete != want.Complete {
			t.Fatalf("DM5 %s = %+v, want %+v", sys, got, want)
		}
		if got := dm26.Monitor(sys); got.Enabled != want.Enabled || got.Complete != want.Complete {
			t.Fatalf("DM26 %s = %+v, want %+v", sys, got, want)
		}
	}
	if len(CompositeSystems) != 16 {
		t.Fatalf("expected 16 composite systems, got %d", len(CompositeSystems))
	}
}

func TestDM5Compliance(t *testing.T) {
	obd := NewDM5(0, 0, 0, 0x14, nil)
	if !obd.IsOBD() {
		t.Fatalf("compliance 0x14 should be OBD")
	}
	for _, v := range []uint8{0, 5, 0xFB, 0xFF} {
		if NewDM5(0, 0, 0, v, nil).IsOBD() {
			t.Fatalf("compliance %d should not be OBD", v)
		}
	}
}

func TestComponentIdentificationFields(t *testing.T) {
	p := NewComponentIdentification(0, "Bat", "Model", "ST109823J456", "Unit")
	if string(p.Make) != "Bat" || string(p.Model) != "Model" || string(p.SerialNumber) != "ST109823J456" || string(p.UnitNumber) != "Unit" {
		t.Fatalf("unexpected fields: %s", p)
	}

	noSerial, err := Decode(PGNComponentID, 0, []byte("Bat*Model*"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if noSerial.(*ComponentIdentification).SerialNumber != nil {
		t.Fatalf("expected nil serial number")
	}
}

func TestDM30Initialized(t *testing.T) {
	results := []ScaledTestResult{
		{TestID: 247, SPN: 3226, FMI: 10, SLOT: 8, Value: 0xFB00, MaxLimit: 0xFFFF, MinLimit: 0xFFFF},
		{TestID: 247, SPN: 3226, FMI: 18, SLOT: 8},
		{TestID: 247, SPN: 3226, FMI: 16, SLOT: 8, Value: 100, MaxLimit: 200, MinLimit: 0},
	}
	p := NewDM30(0, results...)
	decoded := MustDecode(PGNDM30, 0, p.Bytes()).(*DM30)
	if len(decoded.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(decoded.Results))
	}
	if !decoded.Results[0].IsInitialized() || !decoded.Results[1].IsInitialized() {
		t.Fatalf("expected first two results initialized")
	}
	if decoded.Results[2].IsInitialized() {
		t.Fatalf("expected third result to carry a value")
	}
	if decoded.Results[0].SPN != 3226 || decoded.Results[0].FMI != 10 {
		t.Fatalf("unexpected SPN/FMI: %+v", decoded.Results[0])
	}
}

func TestDM24TestResultSPNs(t *testing.T) {
	p := NewDM24(0,
		SupportedSPN{SPN: 102, DataStream: true, Length: 1},
		SupportedSPN{SPN: 3226, TestResults: true, DataStream: true, Length: 2},
		SupportedSPN{SPN: 0x40000 + 27, TestResults: true, Length: 2},
	)
	got := p.TestResultSPNs()
	if len(got) != 2 || got[0] != 3226 || got[1] != 0x40000+27 {
		t.Fatalf("TestResultSPNs = %v", got)
	}
}

func TestDM25FreezeFrames(t *testing.T) {
	none := NewDM25(0)
	if len(none.FreezeFrames) != 0 {
		t.Fatalf("expected no freeze frames, got %d", len(none.FreezeFrames))
	}
	ff := FreezeFrame{DTC: DiagnosticTroubleCode{SPN: 102, FMI: 4, OccurrenceCount: 1}, Data: []byte{1, 2, 3}}
	one := MustDecode(PGNDM25, 0, NewDM25(0, ff).Bytes()).(*DM25)
	if len(one.FreezeFrames) != 1 || !bytes.Equal(one.FreezeFrames[0].Data, ff.Data) || one.FreezeFrames[0].DTC != ff.DTC {
		t.Fatalf("unexpected freeze frames: %+v", one.FreezeFrames)
	}
}

func TestDM29Counts(t *testing.T) {
	p := NewDM29(0, 0, 0xFF, 0, 0, 0)
	if p.AllPendingSupported() {
		t.Fatalf("0xFF all pending count should mean unsupported")
	}
	if p.HasNonZeroCount() {
		t.Fatalf("expected no non-zero counts")
	}
	if !NewDM29(0, 0, 0, 1, 0, 0).HasNonZeroCount() {
		t.Fatalf("expected non-zero MIL-on count")
	}
}

func TestEqualComparesBytes(t *testing.T) {
	a := NewDM21(0, 0, 0, 0, 0)
	b := MustDecode(PGNDM21, 0, a.Bytes())
	if !Equal(a, b) {
		t.Fatalf("expected equal packets")
	}
	if Equal(a, NewDM21(0, 0, 1, 0, 0)) {
		t.Fatalf("expected different packets")
	}
	if Equal(a, NewDM21(1, 0, 0, 0, 0)) {
		t.Fatalf("expected packets from different sources to differ")
	}
}

func TestLookupName(t *testing.T) {
	l := NewLookup(nil)
	cases := map[int]string{
		0:    "Engine #1 (0)",
		1:    "Engine #2 (1)",
		3:    "Transmission #1 (3)",
		23:   "Instrument Cluster #1 (23)",
		0x85: "Unknown (133)",
	}
	for addr, want := range cases {
		if got := l.Name(addr); got != want {
			t.Fatalf("Name(%d) = %q, want %q", addr, got, want)
		}
	}
	if got := NewLookup(map[int]string{0x85: "Aftertreatment"}).Name(0x85); got != "Aftertreatment (133)" {
		t.Fatalf("override name = %q", got)
	}
}
