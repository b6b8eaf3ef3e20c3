package j1939

import "fmt"

// Function ids reported in the address claim NAME. Only the ones the
// harness reasons about are named.
const (
	FunctionEngine       = 0
	FunctionTransmission = 3
)

var addressNames = map[int]string{
	0:   "Engine #1",
	1:   "Engine #2",
	2:   "Turbocharger",
	3:   "Transmission #1",
	4:   "Transmission #2",
	5:   "Shift Console - Primary",
	6:   "Shift Console - Secondary",
	7:   "Power TakeOff - (Main or Rear)",
	8:   "Axle - Steering",
	9:   "Axle - Drive #1",
	10:  "Axle - Drive #2",
	11:  "Brakes - System Controller",
	12:  "Brakes - Steer Axle",
	13:  "Brakes - Drive axle #1",
	14:  "Brakes - Drive Axle #2",
	15:  "Retarder - Exhaust, Engine #1",
	16:  "Retarder - Driveline",
	17:  "Cruise Control",
	18:  "Fuel System",
	19:  "Steering Controller",
	20:  "Suspension - Steer Axle",
	21:  "Suspension - Drive Axle #1",
	22:  "Suspension - Drive Axle #2",
	23:  "Instrument Cluster #1",
	24:  "Trip Recorder",
	25:  "Passenger-Operator Climate Control #1",
	26:  "Alternator/Electrical Charging System",
	27:  "Aerodynamic Control",
	28:  "Vehicle Navigation",
	29:  "Vehicle Security",
	30:  "Electrical System",
	31:  "Starter System",
	32:  "Tractor-Trailer Bridge #1",
	33:  "Body Controller",
	34:  "Auxiliary Valve Control or Engine Air System Valve Control",
	35:  "Hitch Control",
	36:  "Power TakeOff (Front or Secondary)",
	37:  "Off Vehicle Gateway",
	38:  "Virtual Terminal (in cab)",
	39:  "Management Computer #1",
	40:  "Cab Display #1",
	41:  "Retarder, Exhaust, Engine #2",
	42:  "Headway Controller",
	43:  "On-Board Diagnostic Unit",
	49:  "Cab Controller - Primary",
	61:  "Exhaust Emission Controller",
	249: "Off Board Diagnostic-Service Tool #1",
	250: "Off Board Diagnostic-Service Tool #2",
	254: "Null",
	255: "Global",
}

// Lookup renders source addresses the way outcome messages name modules.
type Lookup struct {
	overrides map[int]string
}

// NewLookup returns a Lookup backed by the fixed J1939 preferred address
// table. overrides, when non-nil, take precedence for the given addresses.
func NewLookup(overrides map[int]string) *Lookup {
	cp := make(map[int]string, len(overrides))
	for k, v := range overrides {
		cp[k] = v
	}
	return &Lookup{overrides: cp}
}

// AddressName returns the bare name for the address without the suffix.
func (l *Lookup) AddressName(address int) string {
	if l != nil {
		if name, ok := l.overrides[address]; ok && name != "" {
			return name
		}
	}
	if name, ok := addressNames[address]; ok {
		return name
	}
	return "Unknown"
}

// Name returns "<name> (<address>)", e.g. "Engine #1 (0)".
func (l *Lookup) Name(address int) string {
	return fmt.Sprintf("%s (%d)", l.AddressName(address), address)
}
