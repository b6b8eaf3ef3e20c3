package registry

import (
	"fmt"
	"strings"
)

// FuelType is the vehicle's certified fuel.
type FuelType string

const (
	FuelDiesel         FuelType = "diesel"
	FuelGasoline       FuelType = "gasoline"
	FuelNaturalGas     FuelType = "natural-gas"
	FuelPropane        FuelType = "propane"
	FuelEthanol        FuelType = "ethanol"
	FuelMethanol       FuelType = "methanol"
	FuelBiFuelDiesel   FuelType = "bi-fuel-diesel"
	FuelHybridDiesel   FuelType = "hybrid-diesel"
	FuelHybridGasoline FuelType = "hybrid-gasoline"
	FuelElectric       FuelType = "electric"
)

// ParseFuelType accepts the config spelling of a fuel type.
func ParseFuelType(s string) (FuelType, error) {
	ft := FuelType(strings.ToLower(strings.TrimSpace(s)))
	switch ft {
	case FuelDiesel, FuelGasoline, FuelNaturalGas, FuelPropane, FuelEthanol, FuelMethanol,
		FuelBiFuelDiesel, FuelHybridDiesel, FuelHybridGasoline, FuelElectric:
		return ft, nil
	default:
		return "", fmt.Errorf("unknown fuel type %q", s)
	}
}

// IsCompressionIgnition reports diesel-cycle engines.
func (f FuelType) IsCompressionIgnition() bool {
	switch f {
	case FuelDiesel, FuelBiFuelDiesel, FuelHybridDiesel:
		return true
	}
	return false
}

// IsSparkIgnition reports otto-cycle engines.
func (f FuelType) IsSparkIgnition() bool {
	switch f {
	case FuelGasoline, FuelNaturalGas, FuelPropane, FuelEthanol, FuelMethanol, FuelHybridGasoline:
		return true
	}
	return false
}

// VehicleInformation is collected before Part 1 and only read afterwards.
type VehicleInformation struct {
	VIN                 string   `json:"vin" yaml:"vin"`
	VehicleModelYear    int      `json:"vehicleModelYear" yaml:"vehicleModelYear"`
	EngineModelYear     int      `json:"engineModelYear" yaml:"engineModelYear"`
	FuelType            FuelType `json:"fuelType" yaml:"fuelType"`
	CertificationIntent string   `json:"certificationIntent,omitempty" yaml:"certificationIntent,omitempty"`
}
