// Package config loads the receiver's static YAML configuration: the
// tracking-channel budget, which constellations/bands to acquire, the two
// task-output ports, and the parameter-persistence file path.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/globsky/greta-oto/pkg/firmware/signal"
)

// PortConfig names a serial output port and its baud rate.
type PortConfig struct {
	Path string `yaml:"path"`
	Baud int    `yaml:"baud"`
}

// Candidate is one pre-acquisition search-list entry: the signal to search
// for and, for a warm/hot start, the Doppler aiding an external almanac/
// last-fix source has already narrowed it to. CenterFreqHz is 0 for a cold
// start entry (full Doppler search).
type Candidate struct {
	Signal       string `yaml:"signal"`
	Svid         int    `yaml:"svid"`
	CenterFreqHz int    `yaml:"center_freq_hz"`
}

// Receiver is the receiver's static configuration.
type Receiver struct {
	ChannelBudget   int         `yaml:"channel_budget"`
	Signals         []string    `yaml:"signals"`
	Candidates      []Candidate `yaml:"candidates"`
	MeasurementPort PortConfig  `yaml:"measurement_port"`
	DataPort        PortConfig  `yaml:"data_port"`
	PersistencePath string      `yaml:"persistence_path"`
}

var bandByName = map[string]signal.Band{
	"L1CA": signal.L1CA,
	"E1":   signal.E1,
	"B1C":  signal.B1C,
	"L1C":  signal.L1C,
}

// Load reads and parses a Receiver config from path.
func Load(path string) (*Receiver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Receiver
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &r, nil
}

// SignalMask returns the bitmask of signal.Band values r.Signals names,
// the enable mask the portal hands the acquisition engine at boot.
func (r *Receiver) SignalMask() (uint32, error) {
	var mask uint32
	for _, name := range r.Signals {
		band, ok := bandByName[name]
		if !ok {
			return 0, fmt.Errorf("config: unknown signal %q", name)
		}
		mask |= 1 << uint(band)
	}
	return mask, nil
}

// SignalID resolves a Candidate's band name and SVID into a signal.ID, the
// form the acquisition engine's search list wants.
func (c Candidate) SignalID() (signal.ID, error) {
	band, ok := bandByName[c.Signal]
	if !ok {
		return signal.ID{}, fmt.Errorf("config: unknown signal %q", c.Signal)
	}
	return signal.ID{Band: band, Svid: uint8(c.Svid)}, nil
}
