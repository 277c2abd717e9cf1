// Package compiler loads experiment files into timeline descriptions.
//
// Three source formats are accepted, chosen by file extension:
//
//   - YAML (.yaml, .yml, .json): plain data. A variable reference is the
//     mapping {"$var": "name"}.
//   - CUE (.cue): the whole file evaluates to the description. Variable
//     references use the same {"$var": "name"} shape.
//   - HCL (.hcl): top-level attributes form the root mapping. Variable
//     references are written variable("name").
//
// Every format is lowered to the same generic shape (maps, lists, strings,
// int64, float64, bool, nil), checked against an embedded JSON Schema, and
// then variable references are replaced by timeline.Variable values. The
// result can be passed straight to engine.Run.
//
// Loaded files cannot carry functions, so loop_function,
// conditional_function and custom sampling are only available to
// descriptions built in Go.
package compiler
