package auditdiff

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is a named query.
type Preset struct {
	Name        string `yaml:"name"`
	Query       string `yaml:"query"`
	Description string `yaml:"description,omitempty"`
}

// Presets is the YAML preset file layout.
type Presets struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads a preset file. Every preset must have a name and a query
// that parses.
func LoadPresets(path string) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	p := &Presets{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(p.Presets))
	for i, preset := range p.Presets {
		if preset.Name == "" {
			return nil, fmt.Errorf("parse presets %s: preset #%d has no name", path, i+1)
		}
		if _, dup := seen[preset.Name]; dup {
			return nil, fmt.Errorf("parse presets %s: duplicate preset %q", path, preset.Name)
		}
		seen[preset.Name] = struct{}{}
		if _, err := ParseQuery(preset.Query); err != nil {
			return nil, fmt.Errorf("parse presets %s: preset %q: %w", path, preset.Name, err)
		}
	}
	return p, nil
}

// Lookup returns the preset called name.
func (p *Presets) Lookup(name string) (Preset, bool) {
	if p == nil {
		return Preset{}, false
	}
	for _, preset := range p.Presets {
		if preset.Name == name {
			return preset, true
		}
	}
	return Preset{}, false
}

// Coverage evaluates every preset over entries in file order.
func (p *Presets) Coverage(entries []Entry) []Coverage {
	out := make([]Coverage, 0, len(p.Presets))
	for _, preset := range p.Presets {
		matched, _ := Filter(entries, preset.Query)
		out = append(out, NewCoverage(preset.Name, len(matched), len(entries)))
	}
	return out
}
