package registry

import (
	"errors"
	"sort"
	"sync"

	"example.com/obdgate/internal/j1939"
)

// ErrNotOBD is returned when a lookup names an address that was never
// registered as an OBD module.
var ErrNotOBD = errors.New("registry: address is not an OBD module")

type slotKey struct {
	kind    j1939.Kind
	ordinal int
}

// OBDModuleInformation is one OBD ECU and the packets stored for it.
type OBDModuleInformation struct {
	SourceAddress int
	Function      int
	Deprecated    bool
	packets       map[slotKey]j1939.Packet
}

// NewOBDModule returns a module with no stored packets.
func NewOBDModule(address, function int) *OBDModuleInformation {
	return &OBDModuleInformation{
		SourceAddress: address,
		Function:      function,
		packets:       make(map[slotKey]j1939.Packet),
	}
}

// Get returns the packet stored for kind under ordinal.
func (m *OBDModuleInformation) Get(kind j1939.Kind, ordinal int) (j1939.Packet, bool) {
	p, ok := m.packets[slotKey{kind: kind, ordinal: ordinal}]
	return p, ok
}

// Latest returns the packet of kind with the highest ordinal.
func (m *OBDModuleInformation) Latest(kind j1939.Kind) (j1939.Packet, bool) {
	best := -1
	var out j1939.Packet
	for k, p := range m.packets {
		if k.kind == kind && k.ordinal > best {
			best, out = k.ordinal, p
		}
	}
	return out, out != nil
}

// Ordinals lists the ordinals stored for kind in ascending order.
func (m *OBDModuleInformation) Ordinals(kind j1939.Kind) []int {
	var out []int
	for k := range m.packets {
		if k.kind == kind {
			out = append(out, k.ordinal)
		}
	}
	sort.Ints(out)
	return out
}

func (m *OBDModuleInformation) clone() *OBDModuleInformation {
	cp := NewOBDModule(m.SourceAddress, m.Function)
	cp.Deprecated = m.Deprecated
	for k, v := range m.packets {
		cp.packets[k] = v
	}
	return cp
}

// DataRepository is the module registry shared by the steps of one session.
// Steps run sequentially; the mutex only guards readers such as reporters
// that inspect the repository from another goroutine.
type DataRepository struct {
	mu      sync.RWMutex
	vehicle VehicleInformation
	modules map[int]*OBDModuleInformation
}

// New returns an empty repository.
func New(vehicle VehicleInformation) *DataRepository {
	return &DataRepository{vehicle: vehicle, modules: make(map[int]*OBDModuleInformation)}
}

// VehicleInformation returns the vehicle metadata.
func (r *DataRepository) VehicleInformation() VehicleInformation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vehicle
}

// SetVehicleInformation replaces the vehicle metadata.
func (r *DataRepository) SetVehicleInformation(v VehicleInformation) {
	r.mu.Lock()
	r.vehicle = v
	r.mu.Unlock()
}

// PutModule upserts a module by source address. Stored packets of an
// existing module are kept.
func (r *DataRepository) PutModule(m *OBDModuleInformation) {
	if m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := m.clone()
	if old, ok := r.modules[m.SourceAddress]; ok {
		for k, v := range old.packets {
			if _, exists := cp.packets[k]; !exists {
				cp.packets[k] = v
			}
		}
	}
	r.modules[m.SourceAddress] = cp
}

// GetModule returns a snapshot of the module at address.
func (r *DataRepository) GetModule(address int) (*OBDModuleInformation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[address]
	if !ok {
		return nil, false
	}
	return m.clone(), true
}

// IsObdModule reports whether address was registered.
func (r *DataRepository) IsObdModule(address int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[address]
	return ok
}

// ObdModules returns snapshots of every module in address order.
func (r *DataRepository) ObdModules() []*OBDModuleInformation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*OBDModuleInformation, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceAddress < out[j].SourceAddress })
	return out
}

// ObdAddresses returns the registered addresses in ascending order.
func (r *DataRepository) ObdAddresses() []int {
	mods := r.ObdModules()
	out := make([]int, len(mods))
	for i, m := range mods {
		out[i] = m.SourceAddress
	}
	return out
}

// FunctionZeroAddress returns the address of the module claiming the engine
// function, if any.
func (r *DataRepository) FunctionZeroAddress() (int, bool) {
	for _, m := range r.ObdModules() {
		if m.Function == j1939.FunctionEngine {
			return m.SourceAddress, true
		}
	}
	return 0, false
}

// Set stores packet for its source module under ordinal. Storing again
// under the same (kind, ordinal) replaces the previous packet.
func (r *DataRepository) Set(packet j1939.Packet, ordinal int) error {
	if packet == nil {
		return errors.New("registry: nil packet")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[packet.SourceAddress()]
	if !ok {
		return ErrNotOBD
	}
	m.packets[slotKey{kind: packet.Kind(), ordinal: ordinal}] = packet
	return nil
}

// Latest returns the newest packet of kind stored for address.
func (r *DataRepository) Latest(address int, kind j1939.Kind) (j1939.Packet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[address]
	if !ok {
		return nil, false
	}
	return m.Latest(kind)
}

// Get returns the packet of kind stored for address under ordinal.
func (r *DataRepository) Get(address int, kind j1939.Kind, ordinal int) (j1939.Packet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[address]
	if !ok {
		return nil, false
	}
	return m.Get(kind, ordinal)
}
