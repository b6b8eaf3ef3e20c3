package j1939

import (
	"bytes"
	"fmt"
)

// ComponentIdentification is PGN 65259: "make*model*serial*unit*".
// Fields are kept as raw bytes so unprintable characters survive.
type ComponentIdentification struct {
	Frame
	Make         []byte
	Model        []byte
	SerialNumber []byte // nil when the field is absent
	UnitNumber   []byte
}

func newComponentIdentification(f Frame) (*ComponentIdentification, error) {
	parts := bytes.Split(f.data, []byte{'*'})
	field := func(i int) []byte {
		if i >= len(parts) {
			return nil
		}
		return bytes.TrimRight(parts[i], "\x00")
	}
	p := &ComponentIdentification{Frame: f, Make: field(0), Model: field(1), UnitNumber: field(3)}
	// the serial is only present when it is followed by a delimiter
	if len(parts) > 3 || (len(parts) == 3 && len(parts[2]) > 0) {
		p.SerialNumber = field(2)
		if p.SerialNumber == nil {
			p.SerialNumber = []byte{}
		}
	}
	return p, nil
}

// NewComponentIdentification encodes the four fields with '*' delimiters.
func NewComponentIdentification(source int, maker, model, serial, unit string) *ComponentIdentification {
	data := []byte(maker + "*" + model + "*" + serial + "*" + unit + "*")
	p, _ := newComponentIdentification(NewFrame(PGNComponentID, source, data))
	return p
}

func (p *ComponentIdentification) Kind() Kind { return KindComponentID }

func (p *ComponentIdentification) String() string {
	return fmt.Sprintf("Component Identification from %d: Make: %s, Model: %s, Serial: %s, Unit: %s",
		p.source, p.Make, p.Model, p.SerialNumber, p.UnitNumber)
}
