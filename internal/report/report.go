// Package report renders and persists acceptance reports.
package report

import (
	"encoding/json"
	"os"

	"example.com/obdgate/internal/harness"
)

func SaveAcceptanceJSON(rep harness.AcceptanceReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

func LoadAcceptanceJSON(path string) (harness.AcceptanceReport, error) {
	var rep harness.AcceptanceReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
