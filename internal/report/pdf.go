package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/obdgate/internal/harness"
	"example.com/obdgate/internal/rules"
)

// PDFOptions controls rendering. ManifestHash, when set, is printed and
// drawn as a QR code under the summary.
type PDFOptions struct {
	Lang         Language
	ManifestHash string
}

// SaveAcceptancePDF renders the given acceptance report into a PDF document.
func SaveAcceptancePDF(rep harness.AcceptanceReport, out string, opts PDFOptions) error {
	tr := NewTranslator(opts.Lang)
	pdf := gofpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252; labels like "Prüfplan" need translating
	utf := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr.T("title"), true)
	pdf.SetAuthor("obdctl", false)
	pdf.SetCreator("obdctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	w := writer{pdf: pdf, tr: tr, utf: utf}
	w.title(tr.T("title"))
	w.summary(rep)
	if rep.Vehicle != nil {
		w.vehicle(rep)
	}
	if opts.ManifestHash != "" {
		if err := w.manifest(opts.ManifestHash); err != nil {
			return err
		}
	}
	w.stepMatrix(rep.StepMatrix)
	w.outcomes(rep.Outcomes)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

type writer struct {
	pdf *gofpdf.Fpdf
	tr  Translator
	utf func(string) string
}

func (w writer) title(title string) {
	w.pdf.SetFont("Helvetica", "B", 18)
	w.pdf.Cell(0, 10, w.utf(title))
	w.pdf.Ln(12)
}

func (w writer) heading(key string) {
	w.pdf.SetFont("Helvetica", "B", 12)
	w.pdf.Cell(0, 8, w.utf(w.tr.T(key)))
	w.pdf.Ln(9)
}

func (w writer) pairs(items [][2]string) {
	w.pdf.SetFont("Helvetica", "", 11)
	for _, item := range items {
		w.pdf.CellFormat(55, 6, w.utf(item[0]), "", 0, "L", false, 0, "")
		w.pdf.CellFormat(0, 6, w.utf(item[1]), "", 1, "L", false, 0, "")
	}
	w.pdf.Ln(4)
}

func (w writer) summary(rep harness.AcceptanceReport) {
	w.heading("summary")
	items := [][2]string{
		{w.tr.T("plan"), emptyFallback(rep.Summary.PlanId, "-")},
		{w.tr.T("total_outcomes"), strconv.Itoa(rep.Summary.Total)},
		{w.tr.T("fails"), strconv.Itoa(rep.Summary.Fails)},
		{w.tr.T("warnings"), strconv.Itoa(rep.Summary.Warnings)},
		{w.tr.T("overall"), w.status(passStatus(rep.Summary.Pass))},
	}
	if rep.Summary.Stopped {
		items = append(items, [2]string{"", w.tr.T("stopped")})
	}
	if rep.Summary.Error != "" {
		items = append(items, [2]string{"", w.tr.Format("run_error", rep.Summary.Error)})
	}
	w.pairs(items)
}

func (w writer) vehicle(rep harness.AcceptanceReport) {
	v := rep.Vehicle
	w.heading("vehicle")
	w.pairs([][2]string{
		{w.tr.T("vin"), emptyFallback(v.VIN, "-")},
		{w.tr.T("vehicle_my"), strconv.Itoa(v.VehicleModelYear)},
		{w.tr.T("engine_my"), strconv.Itoa(v.EngineModelYear)},
		{w.tr.T("fuel_type"), emptyFallback(string(v.FuelType), "-")},
	})
}

func (w writer) manifest(hash string) error {
	png, err := HashQR(hash, 256)
	if err != nil {
		return err
	}
	w.heading("manifest")
	w.pdf.SetFont("Courier", "", 8)
	w.pdf.MultiCell(0, 4, hash, "", "L", false)
	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	w.pdf.RegisterImageOptionsReader("manifest-qr", opt, bytes.NewReader(png))
	w.pdf.ImageOptions("manifest-qr", w.pdf.GetX(), w.pdf.GetY()+2, 30, 30, true, opt, 0, "")
	w.pdf.Ln(6)
	return nil
}

func (w writer) stepMatrix(rows []harness.StepStatus) {
	w.heading("step_matrix")
	headers := []string{w.tr.T("col_step"), w.tr.T("col_name"), w.tr.T("col_status"), w.tr.T("col_fails"), w.tr.T("col_warnings")}
	widths := []float64{18, 62, 50, 25, 25}

	w.pdf.SetFillColor(240, 240, 240)
	w.pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		w.pdf.CellFormat(widths[i], 7, w.utf(h), "1", 0, "L", true, 0, "")
	}
	w.pdf.Ln(-1)

	w.pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		values := []string{
			strconv.Itoa(row.Step),
			row.Name,
			w.status(row.Status),
			strconv.Itoa(row.Fails),
			strconv.Itoa(row.Warnings),
		}
		w.row(widths, values, 5)
	}
	w.pdf.Ln(4)
}

func (w writer) outcomes(outcomes []rules.Outcome) {
	w.heading("outcomes")
	if len(outcomes) == 0 {
		w.pdf.SetFont("Helvetica", "", 11)
		w.pdf.MultiCell(0, 6, w.utf(w.tr.T("no_outcomes")), "", "L", false)
		return
	}
	for i, o := range outcomes {
		w.pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, emptyFallback(o.Code, fmt.Sprintf("6.%d.%d", o.Part, o.Step)), severityLabel(o.Severity))
		w.pdf.MultiCell(0, 5, header, "", "L", false)
		if msg := strings.TrimSpace(o.Message); msg != "" {
			w.pdf.SetFont("Helvetica", "", 10)
			w.pdf.MultiCell(0, 5, w.utf(msg), "", "L", false)
		}
		if !o.Ts.IsZero() {
			w.pdf.SetFont("Helvetica", "", 8)
			w.pdf.MultiCell(0, 4, o.Ts.Format(time.RFC3339), "", "L", false)
		}
		w.pdf.Ln(2)
	}
}

func (w writer) row(widths []float64, values []string, lineHeight float64) {
	xStart := w.pdf.GetX()
	yStart := w.pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(w.utf(val))
		if text == "" {
			text = "-"
		}
		// text is already cp1252, so split bytes rather than runes
		var lines []string
		for _, l := range w.pdf.SplitLines([]byte(text), widths[i]-2) {
			lines = append(lines, string(l))
		}
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	x := xStart
	for i, lines := range splitCols {
		w.pdf.SetXY(x, yStart)
		w.pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	w.pdf.SetXY(xStart, yStart+float64(maxLines)*lineHeight)
}

func (w writer) status(s string) string {
	return w.tr.T("status_" + s)
}

func passStatus(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func severityLabel(sev rules.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
