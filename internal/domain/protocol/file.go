package protocol

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a protocols YAML file.
type File struct {
	Protocols []*Protocol `yaml:"protocols"`
}

// LoadFile reads and validates every protocol in a YAML file.
func LoadFile(path string) ([]*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read protocols file: %w", err)
	}
	return Parse(data)
}

// Parse decodes protocols from YAML. Omitted HHS settings and calcium policy
// take the canonical defaults.
func Parse(data []byte) ([]*Protocol, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse protocols file: %w", err)
	}
	seen := make(map[string]bool, len(f.Protocols))
	for i, p := range f.Protocols {
		if p == nil {
			return nil, fmt.Errorf("protocols[%d]: empty entry", i)
		}
		p.applyDefaults()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("protocols[%d] (%s): %w", i, p.Name, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("protocols[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
	}
	return f.Protocols, nil
}
