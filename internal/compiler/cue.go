package compiler

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// ParseCUE evaluates a CUE experiment file. The file must evaluate to
// concrete data; definitions and hidden fields may be used as helpers and
// are dropped from the result.
func ParseCUE(data []byte, filename string) (any, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(filename, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(filename, err)
	}

	b, err := v.MarshalJSON()
	if err != nil {
		return nil, cueError(filename, err)
	}
	raw, err := decodeJSON(b)
	if err != nil {
		return nil, &CompileError{File: filename, Field: "cue", Message: err.Error()}
	}
	return normalize(raw)
}

// cueError reports the first CUE error with its position, when it has one.
func cueError(filename string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{File: filename, Field: "cue", Message: err.Error()}
	}

	first := errs[0]
	ce := &CompileError{File: filename, Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 && positions[0].IsValid() {
		pos := positions[0]
		if pos.Filename() != "" {
			ce.File = pos.Filename()
		}
		ce.Line = pos.Line()
		ce.Column = pos.Column()
	}
	return ce
}
