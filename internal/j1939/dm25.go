package j1939

import (
	"fmt"
	"strings"
)

// FreezeFrame is one DM25 record: the DTC and its captured SPN data.
type FreezeFrame struct {
	DTC  DiagnosticTroubleCode
	Data []byte
}

// DM25 is Expanded Freeze Frame.
type DM25 struct {
	Frame
	FreezeFrames []FreezeFrame
}

func newDM25(f Frame) (*DM25, error) {
	p := &DM25{Frame: f}
	for i := 0; i < len(f.data); {
		n := int(f.data[i])
		if n < 4 || n == 0xFF || i+1+n > len(f.data) {
			break
		}
		rec := f.data[i+1 : i+1+n]
		p.FreezeFrames = append(p.FreezeFrames, FreezeFrame{
			DTC:  decodeDTC(rec[:4]),
			Data: append([]byte(nil), rec[4:]...),
		})
		i += 1 + n
	}
	return p, nil
}

// NewDM25 encodes the frames; with none it encodes the "no freeze frame"
// form 00 00 00 00 00 FF FF FF.
func NewDM25(source int, frames ...FreezeFrame) *DM25 {
	var data []byte
	for _, ff := range frames {
		data = append(data, byte(4+len(ff.Data)))
		data = append(data, ff.DTC.Encode()...)
		data = append(data, ff.Data...)
	}
	if len(data) == 0 {
		data = []byte{0, 0, 0, 0, 0, 0xFF, 0xFF, 0xFF}
	}
	p, _ := newDM25(NewFrame(PGNDM25, source, data))
	return p
}

func (p *DM25) Kind() Kind { return KindDM25 }

func (p *DM25) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DM25 from %d:", p.source)
	if len(p.FreezeFrames) == 0 {
		b.WriteString(" No Freeze Frames")
	}
	for _, ff := range p.FreezeFrames {
		fmt.Fprintf(&b, "\n  Freeze Frame: %s [% X]", ff.DTC, ff.Data)
	}
	return b.String()
}
