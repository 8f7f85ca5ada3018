package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UniverseFile is the on-disk shape of an instrument universe.
type UniverseFile struct {
	Name        string   `yaml:"name"`
	Instruments []string `yaml:"instruments"`
}

// LoadUniverse reads the instrument list a detection pass runs over.
func LoadUniverse(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read universe file: %w", err)
	}
	var u UniverseFile
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("cannot parse YAML: %w", err)
	}
	if len(u.Instruments) == 0 {
		return nil, fmt.Errorf("universe %q lists no instruments", path)
	}
	return u.Instruments, nil
}
