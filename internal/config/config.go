// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"codevolt/internal/scenario"
	"codevolt/internal/sensor"
)

// ChannelConfig overrides fields of one built-in channel. Unset fields keep
// the built-in value.
type ChannelConfig struct {
	Kind      sensor.Kind `yaml:"kind"`
	Unit      *string     `yaml:"unit,omitempty"`
	Threshold *float64    `yaml:"threshold,omitempty"`
	Initial   *float64    `yaml:"initial,omitempty"`
	StepMin   *float64    `yaml:"step_min,omitempty"`
	StepMax   *float64    `yaml:"step_max,omitempty"`
	Max       *float64    `yaml:"max,omitempty"`
	Location  *string     `yaml:"location,omitempty"`
}

// Config is the root configuration of a demo session.
type Config struct {
	TickInterval   time.Duration   `yaml:"tick_interval"`
	Seed           int64           `yaml:"seed"`
	AutoSOS        bool            `yaml:"auto_sos"`
	SOSMinCritical int             `yaml:"sos_min_critical"`
	Scenario       string          `yaml:"scenario"`
	ScenarioFile   string          `yaml:"scenario_file"`
	AdminAddr      string          `yaml:"admin_addr"`
	Channels       []ChannelConfig `yaml:"channels"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		TickInterval:   100 * time.Millisecond,
		AutoSOS:        true,
		SOSMinCritical: 2,
		Scenario:       scenario.DefaultName,
		AdminAddr:      ":8080",
	}
}

// Load loads YAML config, validates it against a CUE schema and merges it
// over Default. An empty schema path skips CUE validation.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cueSchemaPath != "" {
		if err := validateBytes(configPath, data, cueSchemaPath); err != nil {
			return nil, err
		}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.Specs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Specs merges the channel overrides over the built-in table and validates
// the result.
func (c *Config) Specs() (map[sensor.Kind]sensor.Spec, error) {
	specs := sensor.DefaultSpecs()
	for _, cc := range c.Channels {
		s, ok := specs[cc.Kind]
		if !ok {
			return nil, fmt.Errorf("config: %w: %q", sensor.ErrUnknownKind, cc.Kind)
		}
		setString(&s.Unit, cc.Unit)
		setString(&s.Location, cc.Location)
		setFloat(&s.Threshold, cc.Threshold)
		setFloat(&s.Initial, cc.Initial)
		setFloat(&s.StepMin, cc.StepMin)
		setFloat(&s.StepMax, cc.StepMax)
		setFloat(&s.Max, cc.Max)
		specs[cc.Kind] = s
	}
	for _, k := range sensor.Kinds {
		if err := specs[k].Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return specs, nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
