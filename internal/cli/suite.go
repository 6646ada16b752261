package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pingmark/pingmark/internal/suite"
)

type suiteOptions struct {
	file        string
	full        bool
	target      string
	transport   string
	requests    int
	repeat      int
	resultsPath string
}

func newSuiteCmd() *cobra.Command {
	opt := &suiteOptions{}
	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Run a batch of benchmarks from a suite file or the built-in matrix",
		Long: `suite runs many benchmark configurations back to back and collects every
result into one CSV. Configurations come from a YAML suite file (-f) or from
the built-in full matrix (--full), which sweeps all eight combinations of
session mode, print output, and request logging.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opt)
		},
	}
	cmd.Flags().StringVarP(&opt.file, "file", "f", "", "Suite file to run")
	cmd.Flags().BoolVar(&opt.full, "full", false, "Run the built-in full matrix instead of a file")
	addTargetFlags(cmd, &opt.target, &opt.transport)
	cmd.Flags().IntVarP(&opt.requests, "requests", "n", 100, "Requests per run (matrix mode)")
	cmd.Flags().IntVar(&opt.repeat, "repeat", 1, "Repetitions per configuration (matrix mode)")
	cmd.Flags().StringVar(&opt.resultsPath, "results", "", "Results CSV path (default from suite file or timestamped)")
	cmd.MarkFlagsMutuallyExclusive("file", "full")
	return cmd
}

func runSuite(opt *suiteOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		s   *suite.Suite
		err error
	)
	switch {
	case opt.full:
		s = suite.FullMatrix(opt.target, opt.transport, opt.requests, opt.repeat)
	case opt.file != "":
		s, err = suite.Load(opt.file)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --file or --full is required")
	}
	if opt.resultsPath != "" {
		s.Results = opt.resultsPath
	}

	runner := &suite.Runner{Suite: s, Observer: requestObserver()}
	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]any{
			"runs":        report.Runs,
			"successful":  report.Successful,
			"failed":      report.Failed,
			"cancelled":   report.Cancelled,
			"results_csv": report.ResultsCSV,
		})
		return nil
	}

	fmt.Println()
	if report.Cancelled {
		warnLabel.Println("Suite cancelled")
	}
	fmt.Printf("Runs completed:  %d\n", report.Runs)
	fmt.Printf("Successful:      %s\n", okLabel.Sprint(report.Successful))
	if report.Failed > 0 {
		fmt.Printf("Failed:          %s\n", errorLabel.Sprint(report.Failed))
	} else {
		fmt.Printf("Failed:          %d\n", report.Failed)
	}
	fmt.Printf("Results written: %s\n", report.ResultsCSV)
	return nil
}
