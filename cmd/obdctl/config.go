package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/obdgate/internal/bus"
	"example.com/obdgate/internal/common"
	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/notify"
	"example.com/obdgate/internal/registry"
)

type moduleConfig struct {
	Address  int    `yaml:"address"`
	Function int    `yaml:"function"`
	Name     string `yaml:"name"`
}

type timingConfig struct {
	DSTimeout time.Duration `yaml:"dsTimeout"`
	DM11Delay time.Duration `yaml:"dm11Delay"`
	DM1Window time.Duration `yaml:"dm1Window"`
}

type mqttConfig struct {
	Enabled           bool `yaml:"enabled"`
	notify.MQTTConfig `yaml:",inline"`
}

type config struct {
	Vehicle     registry.VehicleInformation `yaml:"vehicle"`
	Modules     []moduleConfig              `yaml:"modules"`
	ToolAddress int                         `yaml:"toolAddress"`
	Timing      timingConfig                `yaml:"timing"`
	Plan        string                      `yaml:"plan"`
	Scenario    string                      `yaml:"scenario"`
	Store       string                      `yaml:"store"`
	OutDir      string                      `yaml:"outDir"`
	Lang        string                      `yaml:"lang"`
	SigningKey  string                      `yaml:"signingKey"`
	MQTT        mqttConfig                  `yaml:"mqtt"`
	Logs        common.LogConfig            `yaml:"logs"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	if cfg.ToolAddress == 0 {
		cfg.ToolAddress = j1939.ServiceToolAddress
	}
	if cfg.Timing.DSTimeout <= 0 {
		cfg.Timing.DSTimeout = bus.DefaultDSTimeout
	}
	if cfg.Timing.DM11Delay <= 0 {
		cfg.Timing.DM11Delay = 5 * time.Second
	}
	if cfg.Timing.DM1Window <= 0 {
		cfg.Timing.DM1Window = 3 * time.Second
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "out"
	}
	cfg.OutDir = resolvePath(cfg.OutDir)
	cfg.Plan = resolvePath(cfg.Plan)
	cfg.Scenario = resolvePath(cfg.Scenario)
	cfg.Store = resolvePath(cfg.Store)
	cfg.SigningKey = resolvePath(cfg.SigningKey)
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Logs.Directory != "" {
		cfg.Logs.Directory = resolvePath(cfg.Logs.Directory)
	}
	if cfg.Logs.File == "" {
		cfg.Logs.File = "obdctl.log"
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	if cfg.Vehicle.FuelType != "" {
		ft, err := registry.ParseFuelType(string(cfg.Vehicle.FuelType))
		if err != nil {
			return cfg, err
		}
		cfg.Vehicle.FuelType = ft
	}
	seen := make(map[int]bool)
	for _, m := range cfg.Modules {
		if m.Address < 0 || m.Address >= j1939.NullAddress {
			return cfg, fmt.Errorf("module address %d out of range", m.Address)
		}
		if m.Address == cfg.ToolAddress {
			return cfg, fmt.Errorf("module address %d is the tool address", m.Address)
		}
		if seen[m.Address] {
			return cfg, fmt.Errorf("module address %d listed twice", m.Address)
		}
		seen[m.Address] = true
	}
	return cfg, nil
}

// repository builds the module registry from the configured modules, or
// from the store when none are configured.
func (cfg config) repository(store *registry.Store) (*registry.DataRepository, error) {
	if len(cfg.Modules) == 0 {
		if store == nil {
			return nil, errors.New("no OBD modules configured and no store")
		}
		repo, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("load store: %w", err)
		}
		if len(repo.ObdAddresses()) == 0 {
			return nil, errors.New("no OBD modules configured or stored")
		}
		if cfg.Vehicle.VIN != "" {
			repo.SetVehicleInformation(cfg.Vehicle)
		}
		return repo, nil
	}
	repo := registry.New(cfg.Vehicle)
	for _, m := range cfg.Modules {
		repo.PutModule(registry.NewOBDModule(m.Address, m.Function))
	}
	return repo, nil
}

func (cfg config) lookup() *j1939.Lookup {
	names := make(map[int]string)
	for _, m := range cfg.Modules {
		if m.Name != "" {
			names[m.Address] = m.Name
		}
	}
	return j1939.NewLookup(names)
}
