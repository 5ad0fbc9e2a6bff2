package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qcache/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Store      string   `json:"store,omitempty"`
	Driver     string   `json:"driver,omitempty"`
	LockPolicy string   `json:"lock_policy,omitempty"`
	Categories int      `json:"categories"`
	Errors     []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and category definitions",
		Long: `Load the configuration (--config plus QCACHE_* overrides) and the
category definitions it names, and report every problem found.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
	}
	formatter.VerboseLog("Loaded configuration from %q", opts.Config)

	result := ValidationResult{
		Store:      cfg.Store.Mode,
		Driver:     cfg.Store.Driver,
		LockPolicy: cfg.LockPolicy,
	}
	code := ErrCodeConfig
	if err := cfg.Validate(); err != nil {
		result.Errors = append(result.Errors, splitJoined(err)...)
	}

	cats, err := cfg.Categories()
	if err != nil {
		if len(result.Errors) == 0 {
			code = ErrCodeCategories
		}
		result.Errors = append(result.Errors, "categories: "+err.Error())
	} else {
		result.Categories = len(cats)
		formatter.VerboseLog("Loaded %d categories", len(cats))
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, code, result)
	}
	result.Valid = true

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("✓ Configuration valid (%d categories, %s store, %s lock)",
		result.Categories, result.Store, result.LockPolicy))
}

func outputValidationErrors(f *OutputFormatter, code string, result ValidationResult) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s) [%s]", len(result.Errors), code))

	if f.JSON() {
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: code, Message: result.Errors[0]},
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	fmt.Fprintln(f.Writer)
	for _, e := range result.Errors {
		fmt.Fprintf(f.Writer, "  %s: %s\n", code, e)
	}
	return exitErr
}

// splitJoined flattens an errors.Join result into one message per error.
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, splitJoined(e)...)
		}
		return out
	}
	return strings.Split(err.Error(), "\n")
}
