package compiler

import (
	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML (or JSON) experiment file into generic data.
func ParseYAML(data []byte, filename string) (any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &CompileError{File: filename, Field: "yaml", Message: err.Error()}
	}
	out, err := normalize(raw)
	if err != nil {
		return nil, &CompileError{File: filename, Field: "yaml", Message: err.Error()}
	}
	return out, nil
}
