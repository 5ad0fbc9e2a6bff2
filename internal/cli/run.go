package cli

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/qcache/internal/scenario"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter string // scenario name glob
	Trace  bool   // print the trace of every scenario
	Jobs   int    // scenarios run at once; <= 0 means unlimited
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
	Trace  []string `json:"trace,omitempty"`
}

// RunResult holds the overall result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml|dir>...",
		Short: "Run cache scenarios",
		Long: `Run scenario files against fresh in-memory caches.

Every scenario gets its own cache and a deterministic clock, so scenarios
run concurrently. Directories are searched for .yaml and .yml files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad config, etc.)

Examples:
  qcache run ./scenarios
  qcache run ./scenarios --filter "product-*" --trace
  qcache run growth.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by file name glob")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print each scenario's trace")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "maximum scenarios run at once (0 = unlimited)")

	return cmd
}

func runScenarios(ctx context.Context, opts *RunOptions, paths []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	logger := newLogger(opts.RootOptions, cfg, cmd.ErrOrStderr())

	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			if os.IsNotExist(err) {
				return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("path not found: %s", p), nil)
			}
			return formatter.fail(ExitCommandError, ErrCodeScenario, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}
	formatter.VerboseLog("Found %d scenario file(s)", len(files))

	results := make([]ScenarioResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}
	for i, file := range files {
		g.Go(func() error {
			results[i] = runScenarioFile(gctx, file, cfg.Store.Driver, opts, logger)
			return nil
		})
	}
	// Scenario failures are results, never group errors.
	_ = g.Wait()

	summary := RunResult{Scenarios: results, Total: len(results)}
	for _, r := range results {
		if r.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		writeRunText(formatter, summary)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", summary.Failed, summary.Total))
	}
	return nil
}

func runScenarioFile(ctx context.Context, file, driver string, opts *RunOptions, logger *slog.Logger) ScenarioResult {
	res := ScenarioResult{Name: strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)), File: file}

	sc, err := scenario.Load(file)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return res
	}
	res.Name = sc.Name

	logger.Debug("running scenario", "scenario", sc.Name, "file", file)
	out, err := scenario.Run(ctx, sc, scenario.WithDriver(driver), scenario.WithLogger(logger))
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res
	}

	res.Pass = out.Pass
	res.Errors = out.Errors
	if opts.Trace {
		trace, err := out.MarshalTrace()
		if err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, fmt.Sprintf("marshal trace: %v", err))
			return res
		}
		res.Trace = strings.Split(strings.TrimSuffix(string(trace), "\n"), "\n")
	}
	return res
}

func writeRunText(f *OutputFormatter, summary RunResult) {
	w := f.Writer
	if summary.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, r := range summary.Scenarios {
		if r.Pass {
			fmt.Fprintf(w, "✓ %s\n", r.Name)
		} else {
			fmt.Fprintf(w, "✗ %s\n", r.Name)
		}
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		for _, line := range r.Trace {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
}

// findScenarioFiles returns path itself when it is a file, or every YAML
// file below it when it is a directory. filter is matched against file
// names without extension.
func findScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}
