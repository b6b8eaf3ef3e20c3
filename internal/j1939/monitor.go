package j1939

import "fmt"

// CompositeSystem is one of the readiness monitors carried in DM5 and DM26.
type CompositeSystem int

const (
	Misfire CompositeSystem = iota
	FuelSystem
	ComprehensiveComponent
	Catalyst
	HeatedCatalyst
	EvaporativeSystem
	SecondaryAirSystem
	ACSystemRefrigerant
	ExhaustGasSensor
	ExhaustGasSensorHeater
	EGRVVTSystem
	ColdStartAidSystem
	BoostPressureControlSys
	DieselParticulateFilter
	NOxCatalystAbsorber
	NMHCConvertingCatalyst
)

// CompositeSystems lists every monitor in display order.
var CompositeSystems = []CompositeSystem{
	ACSystemRefrigerant,
	BoostPressureControlSys,
	Catalyst,
	ColdStartAidSystem,
	ComprehensiveComponent,
	DieselParticulateFilter,
	EGRVVTSystem,
	EvaporativeSystem,
	ExhaustGasSensor,
	ExhaustGasSensorHeater,
	FuelSystem,
	HeatedCatalyst,
	Misfire,
	NMHCConvertingCatalyst,
	NOxCatalystAbsorber,
	SecondaryAirSystem,
}

var compositeNames = map[CompositeSystem]string{
	Misfire:                 "Misfire",
	FuelSystem:              "Fuel System",
	ComprehensiveComponent:  "Comprehensive component",
	Catalyst:                "Catalyst",
	HeatedCatalyst:          "Heated catalyst",
	EvaporativeSystem:       "Evaporative system",
	SecondaryAirSystem:      "Secondary air system",
	ACSystemRefrigerant:     "A/C system refrigerant",
	ExhaustGasSensor:        "Exhaust Gas Sensor",
	ExhaustGasSensorHeater:  "Exhaust Gas Sensor heater",
	EGRVVTSystem:            "EGR/VVT system",
	ColdStartAidSystem:      "Cold start aid system",
	BoostPressureControlSys: "Boost pressure control sys",
	DieselParticulateFilter: "Diesel Particulate Filter",
	NOxCatalystAbsorber:     "NOx catalyst/adsorber",
	NMHCConvertingCatalyst:  "NMHC converting catalyst",
}

func (c CompositeSystem) String() string {
	if name, ok := compositeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CompositeSystem(%d)", int(c))
}

// IsContinuous reports whether the monitor lives in the continuously
// monitored byte rather than the non-continuous words.
func (c CompositeSystem) IsContinuous() bool {
	return c == Misfire || c == FuelSystem || c == ComprehensiveComponent
}

// bit is the position of the monitor within its field: bits 0-2 of the
// continuous byte, bits 0-12 of the non-continuous word.
func (c CompositeSystem) bit() uint {
	switch c {
	case Misfire:
		return 0
	case FuelSystem:
		return 1
	case ComprehensiveComponent:
		return 2
	default:
		return uint(c - Catalyst)
	}
}

// MonitoredSystem is one monitor's state as reported by one module. For DM5
// Enabled means "supported"; for DM26 it means "enabled for this cycle".
type MonitoredSystem struct {
	System   CompositeSystem
	Source   int
	Enabled  bool
	Complete bool
}

// decodeMonitors reads the readiness layout shared by DM5 and DM26:
// one continuous byte (enable bits 0-2, not-complete bits 4-6), a
// non-continuous enable word and a non-continuous not-complete word.
func decodeMonitors(source int, continuous uint8, enabled, notComplete uint16) map[CompositeSystem]MonitoredSystem {
	out := make(map[CompositeSystem]MonitoredSystem, len(CompositeSystems))
	for _, sys := range CompositeSystems {
		var on, incomplete bool
		if sys.IsContinuous() {
			on = continuous&(1<<sys.bit()) != 0
			incomplete = continuous&(1<<(sys.bit()+4)) != 0
		} else {
			on = enabled&(1<<sys.bit()) != 0
			incomplete = notComplete&(1<<sys.bit()) != 0
		}
		out[sys] = MonitoredSystem{System: sys, Source: source, Enabled: on, Complete: !incomplete}
	}
	return out
}

// EncodeMonitors is the inverse of decodeMonitors for fixtures and the
// simulator: it returns the continuous byte and the two non-continuous words.
func EncodeMonitors(states map[CompositeSystem]MonitoredSystem) (uint8, uint16, uint16) {
	var continuous uint8
	var enabled, notComplete uint16
	for sys, st := range states {
		if sys.IsContinuous() {
			if st.Enabled {
				continuous |= 1 << sys.bit()
			}
			if !st.Complete {
				continuous |= 1 << (sys.bit() + 4)
			}
			continue
		}
		if st.Enabled {
			enabled |= 1 << sys.bit()
		}
		if !st.Complete {
			notComplete |= 1 << sys.bit()
		}
	}
	return continuous, enabled, notComplete
}
