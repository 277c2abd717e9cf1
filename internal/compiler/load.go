package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/trialrun/internal/plugin"
)

// Format is an experiment file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
	FormatHCL  Format = "hcl"
)

// FormatFromPath picks the format from the file extension. JSON files are
// read as YAML.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("unsupported experiment file extension %q (want .yaml, .yml, .json, .cue or .hcl)", filepath.Ext(path))
	}
}

// Load reads and compiles the experiment file at path.
func Load(path string) (any, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment file: %w", err)
	}
	return Compile(data, path, format)
}

// Compile parses data in the given format, validates it against the
// description schema and resolves variable references. filename is only
// used in error messages.
func Compile(data []byte, filename string, format Format) (any, error) {
	var (
		raw any
		err error
	)
	switch format {
	case FormatYAML:
		raw, err = ParseYAML(data, filename)
	case FormatCUE:
		raw, err = ParseCUE(data, filename)
	case FormatHCL:
		raw, err = ParseHCL(data, filename)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}

	desc, err := CompileValue(raw)
	if err != nil {
		if ce, ok := AsCompileError(err); ok && ce.File == "" {
			ce.File = filename
		}
		return nil, err
	}
	return desc, nil
}

// CompileValue validates already decoded description data and resolves its
// variable references. Other formats embedding an experiment, such as
// harness scenarios, go through here.
func CompileValue(raw any) (any, error) {
	n, err := normalize(raw)
	if err != nil {
		return nil, &CompileError{Message: err.Error()}
	}
	if err := Validate(n); err != nil {
		return nil, err
	}
	return resolveVariables(n, "")
}

// CheckPlugins reports the first trial whose type has no plugin in reg.
func CheckPlugins(desc any, reg *plugin.Registry) error {
	return checkPlugins(desc, "", reg)
}

func checkPlugins(v any, path string, reg *plugin.Registry) error {
	switch val := v.(type) {
	case []any:
		for i, child := range val {
			if err := checkPlugins(child, path+"["+strconv.Itoa(i)+"]", reg); err != nil {
				return err
			}
		}
	case map[string]any:
		if children, ok := val["timeline"]; ok && children != nil {
			return checkPlugins(children, joinPath(path, "timeline"), reg)
		}
		typ, _ := val["type"].(string)
		if _, ok := reg.Lookup(typ); !ok {
			return &CompileError{
				Field:   joinPath(path, "type"),
				Message: fmt.Sprintf("unknown plugin %q (registered: %s)", typ, strings.Join(reg.Names(), ", ")),
			}
		}
	}
	return nil
}
