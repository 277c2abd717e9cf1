package compiler

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// variableFunc implements variable("name") in HCL files. It yields the same
// {"$var": name} marker the other formats use.
var variableFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.Object(map[string]cty.Type{varKey: cty.String})),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		if args[0].AsString() == "" {
			return cty.NilVal, fmt.Errorf("variable name must not be empty")
		}
		return cty.ObjectVal(map[string]cty.Value{varKey: args[0]}), nil
	},
})

// ParseHCL decodes an HCL experiment file. Each top-level attribute becomes
// a key of the root timeline mapping, so the file must set timeline.
func ParseHCL(data []byte, filename string) (any, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, hclError(filename, diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, hclError(filename, diags)
	}

	evalCtx := &hcl.EvalContext{
		Functions: map[string]function.Function{
			"variable": variableFunc,
		},
	}
	root := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, hclError(filename, diags)
		}
		v, err := ctyToGo(val)
		if err != nil {
			return nil, &CompileError{
				File:    filename,
				Line:    attr.Range.Start.Line,
				Column:  attr.Range.Start.Column,
				Field:   name,
				Message: err.Error(),
			}
		}
		root[name] = v
	}
	return root, nil
}

func hclError(filename string, diags hcl.Diagnostics) error {
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		ce := &CompileError{File: filename, Field: "hcl", Message: d.Summary}
		if d.Detail != "" {
			ce.Message = d.Summary + ": " + strings.TrimSuffix(d.Detail, ".")
		}
		if d.Subject != nil {
			ce.Line = d.Subject.Start.Line
			ce.Column = d.Subject.Start.Column
		}
		return ce
	}
	return &CompileError{File: filename, Field: "hcl", Message: diags.Error()}
}

// ctyToGo converts an evaluated HCL value to generic data. Whole numbers
// become int64, other numbers float64.
func ctyToGo(val cty.Value) (any, error) {
	if !val.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			bf := val.AsBigFloat()
			if bf.IsInt() {
				if i, acc := bf.Int64(); acc == big.Exact {
					return i, nil
				}
			}
			f, _ := bf.Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
		}
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			elem, err := ctyToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = elem
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			elem, err := ctyToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type: %s", ty.FriendlyName())
}
