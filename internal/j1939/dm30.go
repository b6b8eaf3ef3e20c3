package j1939

import (
	"fmt"
	"strings"
)

// TestIDForSPN is the DM7 test identifier that requests every test of an SPN.
const TestIDForSPN = 247

// ScaledTestResult is one twelve byte DM30 record.
type ScaledTestResult struct {
	TestID   int
	SPN      int
	FMI      int
	SLOT     uint16
	Value    uint16
	MaxLimit uint16
	MinLimit uint16
}

// IsInitialized reports whether the result carries one of the two
// "no result yet" encodings: 0xFB00/0xFFFF/0xFFFF or all zero.
func (r ScaledTestResult) IsInitialized() bool {
	if r.Value == 0xFB00 && r.MaxLimit == 0xFFFF && r.MinLimit == 0xFFFF {
		return true
	}
	return r.Value == 0 && r.MaxLimit == 0 && r.MinLimit == 0
}

func (r ScaledTestResult) encode() []byte {
	return []byte{
		byte(r.TestID),
		byte(r.SPN), byte(r.SPN >> 8), byte((r.SPN>>11)&0xE0) | byte(r.FMI&0x1F),
		byte(r.SLOT), byte(r.SLOT >> 8),
		byte(r.Value), byte(r.Value >> 8),
		byte(r.MaxLimit), byte(r.MaxLimit >> 8),
		byte(r.MinLimit), byte(r.MinLimit >> 8),
	}
}

func (r ScaledTestResult) String() string {
	return fmt.Sprintf("SPN %d FMI %d (SLOT %d) Result: %d, Min: %d, Max: %d", r.SPN, r.FMI, r.SLOT, r.Value, r.MinLimit, r.MaxLimit)
}

// DM30 is Scaled Test Results.
type DM30 struct {
	Frame
	Results []ScaledTestResult
}

func newDM30(f Frame) (*DM30, error) {
	p := &DM30{Frame: f}
	for i := 0; i+12 <= len(f.data); i += 12 {
		b := f.data[i : i+12]
		p.Results = append(p.Results, ScaledTestResult{
			TestID:   int(b[0]),
			SPN:      int(b[1]) | int(b[2])<<8 | int(b[3]&0xE0)<<11,
			FMI:      int(b[3] & 0x1F),
			SLOT:     uint16(b[4]) | uint16(b[5])<<8,
			Value:    uint16(b[6]) | uint16(b[7])<<8,
			MaxLimit: uint16(b[8]) | uint16(b[9])<<8,
			MinLimit: uint16(b[10]) | uint16(b[11])<<8,
		})
	}
	return p, nil
}

// NewDM30 encodes the given results.
func NewDM30(source int, results ...ScaledTestResult) *DM30 {
	var data []byte
	for _, r := range results {
		data = append(data, r.encode()...)
	}
	p, _ := newDM30(NewFrame(PGNDM30, source, data))
	return p
}

func (p *DM30) Kind() Kind { return KindDM30 }

func (p *DM30) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DM30 from %d: %d results", p.source, len(p.Results))
	for _, r := range p.Results {
		b.WriteString("\n  ")
		b.WriteString(r.String())
	}
	return b.String()
}

// DM7Payload is the command requesting test results for spn/fmi.
func DM7Payload(testID, spn, fmi int) []byte {
	return []byte{
		byte(testID),
		byte(spn), byte(spn >> 8), byte((spn>>11)&0xE0) | byte(fmi&0x1F),
		0xFF, 0xFF, 0xFF, 0xFF,
	}
}

// RequestPayload is the three byte body of a PGN 59904 request.
func RequestPayload(pgn uint32) []byte {
	return []byte{byte(pgn), byte(pgn >> 8), byte(pgn >> 16)}
}
