package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentfloor/core"
)

// Scenario is a configuration plus the ingested messages of one simulated
// conversation.
type Scenario struct {
	Config   `yaml:",inline"`
	Messages []core.IngestedMessage `yaml:"messages" validate:"dive"`
}

// Load reads a configuration file. Omitted keys keep their Default values.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes and validates a configuration.
func Read(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (Scenario, error) {
	sc := Scenario{Config: Default()}
	if err := decode(bytes.NewReader(data), &sc); err != nil {
		return Scenario{}, err
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	for i, m := range sc.Messages {
		if err := m.Validate(); err != nil {
			return Scenario{}, fmt.Errorf("message %d: %w", i, err)
		}
	}
	return sc, nil
}

func decode(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decode: %w", core.ErrConfiguration, err)
	}
	return nil
}

// Validate checks struct tags and cross-field rules.
func (c Config) Validate() error {
	if err := core.ValidateStruct(c); err != nil {
		return fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if seen[a.ID] {
			return fmt.Errorf("%w: duplicate agent %q", core.ErrConfiguration, a.ID)
		}
		seen[a.ID] = true
	}
	for _, a := range c.Agents {
		for target := range a.Identity.Trust {
			if !seen[target] {
				return fmt.Errorf("%w: agent %q trusts unknown agent %q", core.ErrConfiguration, a.ID, target)
			}
		}
	}
	return nil
}
