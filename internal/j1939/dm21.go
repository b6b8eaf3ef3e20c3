package j1939

import "fmt"

// DM21 is Diagnostic Readiness 2: distance and time counters.
type DM21 struct {
	Frame
	KmWithMIL           uint16
	KmSinceCleared      uint16
	MinutesWithMIL      uint16
	MinutesSinceCleared uint16
}

func newDM21(f Frame) (*DM21, error) {
	if err := requireLen(f, 8); err != nil {
		return nil, err
	}
	return &DM21{
		Frame:               f,
		KmWithMIL:           f.wordAt(0),
		KmSinceCleared:      f.wordAt(2),
		MinutesWithMIL:      f.wordAt(4),
		MinutesSinceCleared: f.wordAt(6),
	}, nil
}

// NewDM21 encodes the four counters.
func NewDM21(source int, kmMIL, kmCleared, minMIL, minCleared uint16) *DM21 {
	data := []byte{
		byte(kmMIL), byte(kmMIL >> 8),
		byte(kmCleared), byte(kmCleared >> 8),
		byte(minMIL), byte(minMIL >> 8),
		byte(minCleared), byte(minCleared >> 8),
	}
	p, _ := newDM21(NewFrame(PGNDM21, source, data))
	return p
}

func (p *DM21) Kind() Kind { return KindDM21 }

func (p *DM21) String() string {
	return fmt.Sprintf("DM21 from %d: [Distance Traveled While MIL is Activated: %d km, Distance Since DTCs Cleared: %d km, Minutes While MIL is Activated: %d, Time Since DTCs Cleared: %d minutes]",
		p.source, p.KmWithMIL, p.KmSinceCleared, p.MinutesWithMIL, p.MinutesSinceCleared)
}
