package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// variablesFile is the on-disk layout of the engine variables file:
//
//	variables:
//	  max_amount: 5000
//	  regions: [north, south]
type variablesFile struct {
	Variables map[string]any `yaml:"variables"`
}

// LoadVariables reads the named engine variables from a YAML file.
// An empty path yields no variables.
func LoadVariables(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variables file: %w", err)
	}
	return ParseVariables(data)
}

// ParseVariables decodes the variables file format. Unknown top-level keys
// are rejected so a misspelled section is not silently ignored.
func ParseVariables(data []byte) (map[string]any, error) {
	var f variablesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse variables file: %w", err)
	}
	if f.Variables == nil {
		f.Variables = map[string]any{}
	}
	return f.Variables, nil
}
