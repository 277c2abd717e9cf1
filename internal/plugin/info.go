package plugin

import "fmt"

// ParameterType is the declared type of a plugin parameter.
type ParameterType int

const (
	Bool ParameterType = iota + 1
	String
	Int
	Float
	Function
	Key
	Keys
	Select
	HTMLString
	Image
	Audio
	Video
	Object
	Complex
	Timeline
)

var parameterTypeNames = map[ParameterType]string{
	Bool:       "bool",
	String:     "string",
	Int:        "int",
	Float:      "float",
	Function:   "function",
	Key:        "key",
	Keys:       "keys",
	Select:     "select",
	HTMLString: "html_string",
	Image:      "image",
	Audio:      "audio",
	Video:      "video",
	Object:     "object",
	Complex:    "complex",
	Timeline:   "timeline",
}

func (t ParameterType) String() string {
	if name, ok := parameterTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ParameterType(%d)", int(t))
}

// Parameter declares one trial parameter.
type Parameter struct {
	Name string
	Type ParameterType

	// Array requires the resolved value to be a list.
	Array bool

	// Default is used when the parameter is absent. A nil Default leaves the
	// parameter nil unless Required is set.
	Default any

	// Required fails the run when the parameter cannot be resolved.
	Required bool

	// Nested declares the fields of a Complex parameter (or of each element
	// when Array is set).
	Nested []Parameter
}

// Info describes a plugin. Parameters are resolved in declaration order.
type Info struct {
	Name       string
	Version    string
	Parameters []Parameter

	// Data lists the fields the plugin writes into its results.
	Data []Parameter
}

// Parameter returns the declared parameter with the given name.
func (i Info) Parameter(name string) (Parameter, bool) {
	for _, p := range i.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Missing lists the descriptive fields a complete Info should carry.
func (i Info) Missing() []string {
	var missing []string
	if i.Version == "" {
		missing = append(missing, "version")
	}
	if i.Data == nil {
		missing = append(missing, "data")
	}
	return missing
}
