// Package config holds the strandd YAML configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"strandctl/internal/topology"
)

type SerialCfg struct {
	Dev  string `yaml:"dev"`  // e.g. /dev/ttyACM0; empty = stdio transport
	Baud int    `yaml:"baud"` // e.g. 115200
}

type MapCfg struct {
	Map     int      `yaml:"map"`
	Rows    []string `yaml:"rows,omitempty"`     // e.g. ["31h","30h","29h","30h"]
	AltRows []string `yaml:"alt_rows,omitempty"` // alternate profile rows
	Flip    bool     `yaml:"flip,omitempty"`
}

type Config struct {
	ID       string `yaml:"id"`
	Driver   string `yaml:"driver"`   // "spi" | "sim"
	SPIPort  string `yaml:"spi_port"` // spireg name; empty = first port
	BeaconMS int    `yaml:"beacon_ms"`
	Store    string `yaml:"store"`   // settings image path
	Preview  string `yaml:"preview"` // mirror listen addr; empty = off

	Serial SerialCfg `yaml:"serial,omitempty"`
	Maps   []MapCfg  `yaml:"maps,omitempty"`
}

// Default is the configuration strandd runs with when no file exists.
func Default() *Config {
	return &Config{
		ID:       "strand0",
		Driver:   "sim",
		BeaconMS: 5000,
		Store:    "strand-settings.bin",
		Serial:   SerialCfg{Baud: 115200},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// ParseRows decodes the compact row spelling: a pixel count followed
// by an optional tag letter, "31h" or "22hi" or plain "30".
func ParseRows(specs []string) ([]topology.Segment, error) {
	rows := make([]topology.Segment, 0, len(specs))
	for _, s := range specs {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 {
			return nil, fmt.Errorf("row %q has no length", s)
		}
		length, err := strconv.Atoi(s[:i])
		if err != nil {
			return nil, fmt.Errorf("row %q: %w", s, err)
		}
		tag := topology.TagHorizontal
		if i < len(s) {
			tag, err = topology.ParseTag(s[i:])
			if err != nil {
				return nil, fmt.Errorf("row %q: %w", s, err)
			}
		}
		rows = append(rows, topology.Segment{Length: length, Tag: tag})
	}
	return rows, nil
}

// Apply installs the per-map overrides into a topology store.
func (c *Config) Apply(st *topology.Store) error {
	for _, mc := range c.Maps {
		if mc.Rows != nil {
			rows, err := ParseRows(mc.Rows)
			if err != nil {
				return fmt.Errorf("map %d: %w", mc.Map, err)
			}
			if err := st.SetRows(mc.Map, rows); err != nil {
				return fmt.Errorf("map %d: %w", mc.Map, err)
			}
		}
		if mc.AltRows != nil {
			rows, err := ParseRows(mc.AltRows)
			if err != nil {
				return fmt.Errorf("map %d: %w", mc.Map, err)
			}
			if err := st.SetAltRows(mc.Map, rows); err != nil {
				return fmt.Errorf("map %d: %w", mc.Map, err)
			}
		}
		if err := st.SetFlip(mc.Map, mc.Flip); err != nil {
			return fmt.Errorf("map %d: %w", mc.Map, err)
		}
	}
	return nil
}
