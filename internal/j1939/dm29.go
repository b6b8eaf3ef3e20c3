package j1939

import "fmt"

// DM29 is Regulated DTC Counts.
type DM29 struct {
	Frame
	EmissionPendingCount uint8
	AllPendingCount      uint8
	MILOnCount           uint8
	PreviousMILOnCount   uint8
	PermanentCount       uint8
}

func newDM29(f Frame) (*DM29, error) {
	if err := requireLen(f, 5); err != nil {
		return nil, err
	}
	return &DM29{
		Frame:                f,
		EmissionPendingCount: f.data[0],
		AllPendingCount:      f.data[1],
		MILOnCount:           f.data[2],
		PreviousMILOnCount:   f.data[3],
		PermanentCount:       f.data[4],
	}, nil
}

// NewDM29 encodes the five counts.
func NewDM29(source int, pending, allPending, milOn, prevMILOn, permanent uint8) *DM29 {
	data := []byte{pending, allPending, milOn, prevMILOn, permanent, 0xFF, 0xFF, 0xFF}
	p, _ := newDM29(NewFrame(PGNDM29, source, data))
	return p
}

func (p *DM29) Kind() Kind { return KindDM29 }

// AllPendingSupported is false when the module reports 0xFF, i.e. it does
// not implement DM27.
func (p *DM29) AllPendingSupported() bool {
	return p.AllPendingCount != notAvailable8
}

// HasNonZeroCount reports whether any supported count is above zero.
func (p *DM29) HasNonZeroCount() bool {
	for _, c := range []uint8{p.EmissionPendingCount, p.AllPendingCount, p.MILOnCount, p.PreviousMILOnCount, p.PermanentCount} {
		if c != 0 && c != notAvailable8 {
			return true
		}
	}
	return false
}

func (p *DM29) String() string {
	return fmt.Sprintf("DM29 from %d: Emission-related Pending DTC Count %d, All Pending DTC Count %d, Emission-related MIL-On DTC Count %d, Emission-related Previously MIL-On DTC Count %d, Emission-related Permanent DTC Count %d",
		p.source, p.EmissionPendingCount, p.AllPendingCount, p.MILOnCount, p.PreviousMILOnCount, p.PermanentCount)
}
