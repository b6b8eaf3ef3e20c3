package bus

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/obdgate/internal/j1939"
)

// ScenarioReply scripts one answer. Exactly one of Hex and Ack is set.
// Path is "global", "ds" or empty for both.
type ScenarioReply struct {
	Address int    `yaml:"address"`
	PGN     uint32 `yaml:"pgn"`
	Path    string `yaml:"path,omitempty"`
	SPN     int    `yaml:"spn,omitempty"` // DM7 replies only
	Hex     string `yaml:"hex,omitempty"`
	Ack     string `yaml:"ack,omitempty"` // ACK|NACK|DENIED|BUSY
}

// Scenario is a simulated vehicle stored as YAML.
type Scenario struct {
	Name       string          `yaml:"name"`
	Replies    []ScenarioReply `yaml:"replies"`
	DM7        []ScenarioReply `yaml:"dm7,omitempty"`
	Broadcasts []ScenarioReply `yaml:"broadcasts,omitempty"`
}

func LoadScenario(path string) (Scenario, error) {
	var sc Scenario
	b, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return sc, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return sc, nil
}

func SaveScenario(sc Scenario, path string) error {
	b, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func parseAck(s string) (j1939.ResponseCode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACK":
		return j1939.ACK, nil
	case "NACK":
		return j1939.NACK, nil
	case "DENIED":
		return j1939.DENIED, nil
	case "BUSY":
		return j1939.BUSY, nil
	}
	return 0, fmt.Errorf("unknown acknowledgment %q", s)
}

func (r ScenarioReply) payload() ([]byte, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(r.Hex, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("reply from %d for pgn %d: %w", r.Address, r.PGN, err)
	}
	return b, nil
}

// Apply scripts sim with every reply of the scenario.
func (sc Scenario) Apply(sim *Simulator) error {
	for _, r := range sc.Replies {
		if r.Ack != "" {
			code, err := parseAck(r.Ack)
			if err != nil {
				return err
			}
			switch r.Path {
			case "global":
				sim.AckGlobal(r.Address, r.PGN, code)
			case "ds":
				sim.AckDS(r.Address, r.PGN, code)
			default:
				sim.Ack(r.Address, r.PGN, code)
			}
			continue
		}
		data, err := r.payload()
		if err != nil {
			return err
		}
		switch r.Path {
		case "global":
			sim.RespondGlobal(r.Address, r.PGN, data)
		case "ds":
			sim.RespondDS(r.Address, r.PGN, data)
		default:
			sim.Respond(r.Address, r.PGN, data)
		}
	}
	for _, r := range sc.DM7 {
		if r.Ack != "" {
			code, err := parseAck(r.Ack)
			if err != nil {
				return err
			}
			sim.AckDM7(r.Address, r.SPN, code)
			continue
		}
		data, err := r.payload()
		if err != nil {
			return err
		}
		sim.RespondDM7(r.Address, r.SPN, data)
	}
	for _, r := range sc.Broadcasts {
		data, err := r.payload()
		if err != nil {
			return err
		}
		p, err := j1939.Decode(r.PGN, r.Address, data)
		if err != nil {
			return err
		}
		sim.Broadcast(p)
	}
	return nil
}

func packetReply(p j1939.Packet) ScenarioReply {
	return ScenarioReply{Address: p.SourceAddress(), PGN: p.PGN(), Hex: hex.EncodeToString(p.Bytes())}
}

// CleanVehicle builds a scenario in which every listed module answers the
// Part 1 requests the way a freshly cleared, compliant engine does: no
// codes, MIL off, counters at zero and test results reset.
func CleanVehicle(addresses ...int) Scenario {
	sc := Scenario{Name: "clean vehicle"}
	const testSPN = 102
	for _, addr := range addresses {
		supported := map[j1939.CompositeSystem]j1939.MonitoredSystem{
			j1939.ComprehensiveComponent: {System: j1939.ComprehensiveComponent, Enabled: true, Complete: true},
		}
		current := map[j1939.CompositeSystem]j1939.MonitoredSystem{
			j1939.ComprehensiveComponent: {System: j1939.ComprehensiveComponent, Enabled: true, Complete: true},
		}
		if addr == 0 {
			supported[j1939.Misfire] = j1939.MonitoredSystem{System: j1939.Misfire, Enabled: true, Complete: true}
			current[j1939.Misfire] = j1939.MonitoredSystem{System: j1939.Misfire, Enabled: true}
		}
		packets := []j1939.Packet{
			j1939.NewComponentIdentification(addr, "OBDGT", "M"+fmt.Sprint(addr), fmt.Sprintf("SN%010d", 10000+addr), "1"),
			j1939.NewDM21(addr, 0, 0, 0, 0),
			j1939.NewDM24(addr, j1939.SupportedSPN{SPN: testSPN, TestResults: true, DataStream: true, Length: 1}),
			j1939.NewDM5(addr, 0, 0, 0x14, supported),
			j1939.NewDM26(addr, 0, 0, current),
			j1939.NewDTCPacket(j1939.PGNDM2, addr, 0, 0, 0, 0),
			j1939.NewDTCPacket(j1939.PGNDM6, addr, 0, 0, 0, 0),
			j1939.NewDTCPacket(j1939.PGNDM12, addr, 0, 0, 0, 0),
			j1939.NewDTCPacket(j1939.PGNDM23, addr, 0, 0, 0, 0),
			j1939.NewDTCPacket(j1939.PGNDM28, addr, 0, 0, 0, 0),
			j1939.NewDTCPacket(j1939.PGNDM27, addr, 0, 0, 0, 0),
			j1939.NewDM29(addr, 0, 0, 0, 0, 0),
			j1939.NewDM31(addr),
			j1939.NewDM25(addr),
			j1939.NewDM20(addr, 0, 0),
		}
		for _, p := range packets {
			sc.Replies = append(sc.Replies, packetReply(p))
		}
		reset := j1939.ScaledTestResult{TestID: j1939.TestIDForSPN, SPN: testSPN, FMI: 16, Value: 0xFB00, MaxLimit: 0xFFFF, MinLimit: 0xFFFF}
		dm7 := packetReply(j1939.NewDM30(addr, reset))
		dm7.SPN = testSPN
		sc.DM7 = append(sc.DM7, dm7)
		sc.Broadcasts = append(sc.Broadcasts, packetReply(j1939.NewDTCPacket(j1939.PGNDM1, addr, 0, 0, 0, 0)))
	}
	return sc
}
