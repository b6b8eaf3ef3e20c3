package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"example.com/obdgate/internal/harness"
	"example.com/obdgate/internal/registry"
	"example.com/obdgate/internal/rules"
)

func sampleReport() harness.AcceptanceReport {
	var rep harness.AcceptanceReport
	rep.Summary.PlanId = "j1939-84-part1"
	rep.Summary.Total = 2
	rep.Summary.Fails = 1
	rep.Summary.Warnings = 1
	rep.Vehicle = &registry.VehicleInformation{VIN: "1XKYDP9X0MJ000001", VehicleModelYear: 2024, EngineModelYear: 2024, FuelType: registry.FuelDiesel}
	rep.StepMatrix = []harness.StepStatus{
		{Step: 10, Name: "Part 1 Step 10", Status: "FAIL", Fails: 1},
		{Step: 11, Name: "Part 1 Step 11", Status: "WARN", Warnings: 1},
		{Step: 12, Name: "Part 1 Step 12", Status: "NOT RUN"},
		{Step: 13, Name: "Prüfschritt 13 (Bereitschaft DM5)", Status: "ABORTED"},
	}
	rep.Outcomes = []rules.Outcome{
		{Ts: time.Unix(1700000000, 0).UTC(), Part: 1, Step: 10, Code: "6.1.10.3.a", Severity: rules.FAIL, Message: "6.1.10.3.a - The request for DM11 was NACK'ed by Engine #2 (1)"},
		{Part: 1, Step: 11, Severity: rules.WARN, Message: "Another device is sending with the service tool source address 249"},
	}
	return rep
}

func TestAcceptanceJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acceptance.json")
	if err := SaveAcceptanceJSON(sampleReport(), path); err != nil {
		t.Fatalf("save: %v", err)
	}
	rep, err := LoadAcceptanceJSON(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rep.Summary.Fails != 1 || rep.Vehicle == nil || rep.Vehicle.FuelType != registry.FuelDiesel || len(rep.Outcomes) != 2 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestSaveAcceptancePDF(t *testing.T) {
	for _, lang := range []Language{LangEnglish, LangGerman} {
		t.Run(string(lang), func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "acceptance.pdf")
			opts := PDFOptions{Lang: lang, ManifestHash: "sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"}
			if err := SaveAcceptancePDF(sampleReport(), out, opts); err != nil {
				t.Fatalf("pdf: %v", err)
			}
			b, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.HasPrefix(b, []byte("%PDF")) {
				t.Fatalf("not a PDF")
			}
		})
	}
}

func TestHashQR(t *testing.T) {
	png, err := HashQR("sha256:ABCDEF0123", 64)
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("not a PNG")
	}
	if _, err := HashQR("  sha256:  ", 64); err == nil {
		t.Fatalf("expected an error for an empty hash")
	}
}

func TestTranslator(t *testing.T) {
	lang, err := ParseLanguage("Deutsch")
	if err != nil || lang != LangGerman {
		t.Fatalf("lang = %s, %v", lang, err)
	}
	if _, err := ParseLanguage("klingon"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
	de := NewTranslator(LangGerman)
	if de.T("status_PASS") != "BESTANDEN" {
		t.Fatalf("status_PASS = %q", de.T("status_PASS"))
	}
	if de.T("missing_key") != "missing_key" {
		t.Fatalf("unknown keys fall back to the key")
	}
	if got := NewTranslator("xx").Format("run_error", "bus off"); got != "Run halted: bus off" {
		t.Fatalf("format = %q", got)
	}
}
