package j1939

import (
	"fmt"
	"strings"
)

// SupportedSPN is one DM24 record. The support flags are active low on the
// wire and decoded to true when supported.
type SupportedSPN struct {
	SPN         int
	TestResults bool
	DataStream  bool
	FreezeFrame bool
	Length      int
}

func (s SupportedSPN) encode() []byte {
	flags := byte(0x07)
	if s.TestResults {
		flags &^= 0x04
	}
	if s.DataStream {
		flags &^= 0x02
	}
	if s.FreezeFrame {
		flags &^= 0x01
	}
	return []byte{byte(s.SPN), byte(s.SPN >> 8), byte((s.SPN>>11)&0xE0) | flags, byte(s.Length)}
}

// DM24 is SPN Support.
type DM24 struct {
	Frame
	SPNs []SupportedSPN
}

func newDM24(f Frame) (*DM24, error) {
	p := &DM24{Frame: f}
	for i := 0; i+4 <= len(f.data); i += 4 {
		b := f.data[i : i+4]
		spn := int(b[0]) | int(b[1])<<8 | int(b[2]&0xE0)<<11
		if spn == 0x7FFFF {
			continue
		}
		p.SPNs = append(p.SPNs, SupportedSPN{
			SPN:         spn,
			TestResults: b[2]&0x04 == 0,
			DataStream:  b[2]&0x02 == 0,
			FreezeFrame: b[2]&0x01 == 0,
			Length:      int(b[3]),
		})
	}
	return p, nil
}

// NewDM24 encodes the given records.
func NewDM24(source int, spns ...SupportedSPN) *DM24 {
	var data []byte
	for _, s := range spns {
		data = append(data, s.encode()...)
	}
	p, _ := newDM24(NewFrame(PGNDM24, source, data))
	return p
}

func (p *DM24) Kind() Kind { return KindDM24 }

// TestResultSPNs returns the SPNs flagged as supporting scaled test results.
func (p *DM24) TestResultSPNs() []int {
	var out []int
	for _, s := range p.SPNs {
		if s.TestResults {
			out = append(out, s.SPN)
		}
	}
	return out
}

func (p *DM24) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DM24 from %d: %d SPNs", p.source, len(p.SPNs))
	for _, s := range p.SPNs {
		fmt.Fprintf(&b, "\n  SPN %d - test results: %t, data stream: %t, freeze frame: %t, length: %d",
			s.SPN, s.TestResults, s.DataStream, s.FreezeFrame, s.Length)
	}
	return b.String()
}
