// Package scenario describes the SOS dispatch narrative as an ordered list of
// phases that advance on elapsed time.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EventTimeElapsed is the trigger event fired as a phase runs; its value is
// the whole seconds spent in the current phase.
const EventTimeElapsed = "time_elapsed"

// DefaultName is the scenario used when none is configured.
const DefaultName = "emergency-dispatch"

// Scenario defines a dispatch narrative with ordered phases and an overall description.
type Scenario struct {
	Name        string  `yaml:"name,omitempty" json:"name,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Phases      []Phase `yaml:"phases" json:"phases"`
}

// Phase is one stage of the dispatch flow.
type Phase struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Step        time.Duration `yaml:"step,omitempty" json:"step,omitempty"`
	Cancelable  bool          `yaml:"cancelable,omitempty" json:"cancelable,omitempty"`
	Dispatch    bool          `yaml:"dispatch,omitempty" json:"dispatch,omitempty"`
	Service     string        `yaml:"service,omitempty" json:"service,omitempty"`
	ETA         string        `yaml:"eta,omitempty" json:"eta,omitempty"`
	Triggers    []Trigger     `yaml:"triggers,omitempty" json:"triggers,omitempty"`
}

// Trigger moves the scenario to another phase based on an event.
type Trigger struct {
	Event string `yaml:"event" json:"event"`
	Value int    `yaml:"value" json:"value"`
	Next  string `yaml:"next" json:"next"`
}

// Event represents a runtime occurrence that may advance the scenario.
type Event struct {
	Type  string
	Value int
}

// Terminal reports whether the phase has nowhere to go.
func (p Phase) Terminal() bool { return len(p.Triggers) == 0 }

// Duration returns the time until the phase's time_elapsed trigger fires, or
// zero for a terminal phase.
func (p Phase) Duration() time.Duration {
	for _, tr := range p.Triggers {
		if tr.Event == EventTimeElapsed {
			return time.Duration(tr.Value) * time.Second
		}
	}
	return 0
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Resolve returns the scenario loaded from path, or the built-in one of the
// given name when path is empty.
func Resolve(path, name string) (*Scenario, error) {
	if path != "" {
		return Load(path)
	}
	if name == "" {
		name = DefaultName
	}
	s, ok := BuiltIn()[name]
	if !ok {
		return nil, fmt.Errorf("unknown built-in scenario %q", name)
	}
	return &s, nil
}

// Validate checks phase names are unique and every non-terminal phase
// advances on a positive time_elapsed trigger to a known phase.
func (s *Scenario) Validate() error {
	if len(s.Phases) == 0 {
		return errors.New("no phases defined")
	}
	seen := make(map[string]bool, len(s.Phases))
	for _, p := range s.Phases {
		if p.Name == "" {
			return errors.New("phase without name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate phase %q", p.Name)
		}
		seen[p.Name] = true
	}
	terminal := false
	for _, p := range s.Phases {
		if p.Terminal() {
			terminal = true
		}
		if p.Step < 0 {
			return fmt.Errorf("phase %q: step must not be negative", p.Name)
		}
		for _, tr := range p.Triggers {
			if !seen[tr.Next] {
				return fmt.Errorf("phase %q: trigger leads to unknown phase %q", p.Name, tr.Next)
			}
			if tr.Event != EventTimeElapsed {
				return fmt.Errorf("phase %q: unsupported trigger event %q", p.Name, tr.Event)
			}
			if tr.Value <= 0 {
				return fmt.Errorf("phase %q: time_elapsed value must be > 0", p.Name)
			}
		}
	}
	if !terminal {
		return errors.New("no terminal phase")
	}
	return nil
}

// Phase looks up a phase by name.
func (s *Scenario) Phase(name string) (Phase, bool) {
	for _, p := range s.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return Phase{}, false
}

// NextPhase returns the name of the next phase given the current phase and event.
// If no trigger matches, ok will be false.
func (s *Scenario) NextPhase(current string, ev Event) (next string, ok bool) {
	for _, p := range s.Phases {
		if p.Name != current {
			continue
		}
		for _, tr := range p.Triggers {
			if tr.Event == ev.Type && ev.Value >= tr.Value {
				return tr.Next, true
			}
		}
	}
	return "", false
}
