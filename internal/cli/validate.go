package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/trialrun/internal/compiler"
	"github.com/roach88/trialrun/internal/plugins"
)

// FileValidation is the validation outcome of one experiment file.
type FileValidation struct {
	File  string                 `json:"file"`
	Valid bool                   `json:"valid"`
	Error *compiler.CompileError `json:"error,omitempty"`
	Other string                 `json:"other_error,omitempty"`
}

// ValidationResult holds validation results for every file.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

func (r ValidationResult) renderText(w io.Writer) error {
	for _, f := range r.Files {
		switch {
		case f.Valid:
			fmt.Fprintf(w, "ok   %s\n", f.File)
		case f.Error != nil:
			fmt.Fprintf(w, "FAIL %s\n  %s\n", f.File, f.Error.Error())
		default:
			fmt.Fprintf(w, "FAIL %s\n  %s\n", f.File, f.Other)
		}
	}
	return nil
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <experiment>...",
		Short: "Validate experiment files without running them",
		Long: `Validate experiment files without running them.

Each file is parsed, checked against the experiment schema, and every trial
type is checked against the built-in plugins. Errors carry the file position
where the format provides one.

Exit codes:
  0 - All files are valid
  1 - One or more files are invalid`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Validation never reads responses.
	registry := plugins.Builtins(plugins.NewScriptResponder())

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	for _, path := range paths {
		formatter.VerboseLog("validating %s", path)
		fv := FileValidation{File: path, Valid: true}
		if _, err := loadExperiment(path, registry); err != nil {
			fv.Valid = false
			if ce, ok := compiler.AsCompileError(err); ok {
				fv.Error = ce
			} else {
				fv.Other = err.Error()
			}
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if !result.Valid {
		failed := NewExitError(ExitFailure, "validation failed")
		_ = formatter.Failure(ErrCodeCompile, result, "", failed)
		return failed
	}
	return formatter.Success(result)
}
