package compiler

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed description.schema.yaml
var descriptionSchemaYAML []byte

const descriptionSchemaURI = "trialrun://schema/description.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// descriptionSchema compiles the embedded schema once.
func descriptionSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var raw any
		if err := yaml.Unmarshal(descriptionSchemaYAML, &raw); err != nil {
			schemaErr = fmt.Errorf("parse description schema: %w", err)
			return
		}
		jsonData, err := json.Marshal(raw)
		if err != nil {
			schemaErr = fmt.Errorf("marshal description schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		c.LoadURL = func(url string) (io.ReadCloser, error) {
			if url == descriptionSchemaURI {
				return io.NopCloser(strings.NewReader(string(jsonData))), nil
			}
			return nil, fmt.Errorf("external schema reference not supported: %s", url)
		}
		schema, schemaErr = c.Compile(descriptionSchemaURI)
	})
	return schema, schemaErr
}

// Validate checks normalized description data against the description
// schema. The first failure is reported as a CompileError whose Field is the
// offending location, e.g. "timeline[0].repetitions".
func Validate(desc any) error {
	s, err := descriptionSchema()
	if err != nil {
		return err
	}
	v, err := jsonValue(desc)
	if err != nil {
		return &CompileError{Message: fmt.Sprintf("description is not plain data: %v", err)}
	}
	if err := s.Validate(v); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return err
		}
		leaf := deepestCause(ve)
		return &CompileError{
			Field:   pointerToPath(leaf.InstanceLocation),
			Message: leaf.Message,
		}
	}
	return nil
}

// deepestCause returns the leaf failure with the longest instance location.
// Among the branches of an if/else or anyOf that is the most specific one.
func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	best := ve
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			if len(e.InstanceLocation) > len(best.InstanceLocation) || best == ve {
				best = e
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return best
}

// pointerToPath turns the JSON pointer "/timeline/0/repetitions" into
// "timeline[0].repetitions".
func pointerToPath(ptr string) string {
	if ptr == "" || ptr == "/" {
		return "(root)"
	}
	var b strings.Builder
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(tok); err == nil {
			b.WriteString("[" + tok + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}
