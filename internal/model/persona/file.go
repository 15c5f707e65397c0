package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type catalogue struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads a persona catalogue from a YAML file. The first entry acts
// as the default when none is named DefaultID.
func LoadFile(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML persona catalogue.
func Parse(data []byte) ([]Persona, error) {
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode persona file: %w", err)
	}
	if len(c.Personas) == 0 {
		return nil, fmt.Errorf("persona file defines no personas")
	}

	seen := make(map[string]struct{}, len(c.Personas))
	for i, p := range c.Personas {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("persona %d: id is required", i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("persona %q: duplicate id", p.ID)
		}
		if strings.TrimSpace(p.Instruction) == "" {
			return nil, fmt.Errorf("persona %q: instruction is required", p.ID)
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		seen[p.ID] = struct{}{}
		c.Personas[i] = p
	}
	return c.Personas, nil
}
