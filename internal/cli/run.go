package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pingmark/pingmark/internal/bench"
	"github.com/pingmark/pingmark/pkg/results"
)

type runOptions struct {
	target      string
	transport   string
	requests    int
	useSession  bool
	printOutput bool
	writeFile   bool
	logPath     string
	compressLog bool
	timeout     time.Duration
	rate        float64
	save        bool
	resultsPath string
	noProbe     bool
}

func newRunCmd() *cobra.Command {
	opt := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one benchmark against a session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(opt)
		},
	}
	addTargetFlags(cmd, &opt.target, &opt.transport)
	cmd.Flags().IntVarP(&opt.requests, "requests", "n", 100, "Number of requests to issue")
	cmd.Flags().BoolVar(&opt.useSession, "session", false, "Reuse one session for all requests")
	cmd.Flags().BoolVar(&opt.printOutput, "print", false, "Echo every request as it completes")
	cmd.Flags().BoolVar(&opt.writeFile, "file", false, "Append every request to a per-run log")
	cmd.Flags().StringVar(&opt.logPath, "log", "", "Request log path (default derived from the start time)")
	cmd.Flags().BoolVar(&opt.compressLog, "compress-log", false, "Snappy-compress the request log")
	cmd.Flags().DurationVar(&opt.timeout, "timeout", bench.DefaultTimeout, "Per-request timeout")
	cmd.Flags().Float64Var(&opt.rate, "rate", 0, "Request pacing in requests per second (0 = back to back)")
	cmd.Flags().BoolVar(&opt.save, "save", false, "Append the summary row to the results CSV")
	cmd.Flags().StringVar(&opt.resultsPath, "results", "benchmark_results.csv", "Results CSV path used with --save")
	cmd.Flags().BoolVar(&opt.noProbe, "no-probe", false, "Skip the preflight probe")
	return cmd
}

func runBenchmark(opt *runOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bench.Config{
		Target:      opt.target,
		Transport:   bench.Transport(opt.transport),
		Requests:    opt.requests,
		UseSession:  opt.useSession,
		PrintOutput: opt.printOutput,
		WriteFile:   opt.writeFile,
		LogPath:     opt.logPath,
		CompressLog: opt.compressLog,
		Timeout:     opt.timeout,
		Rate:        opt.rate,
		Observer:    requestObserver(),
	}

	if !opt.noProbe {
		if err := bench.Preflight(ctx, cfg); err != nil && !jsonOutput {
			warnLabel.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	outcome, err := bench.Run(ctx, cfg)
	if err != nil {
		return err
	}

	if opt.save {
		rec, err := results.NewCSVRecorder(opt.resultsPath)
		if err != nil {
			return err
		}
		defer rec.Close()
		if err := rec.Record(outcome.Result); err != nil {
			return err
		}
	}

	if jsonOutput {
		printJSON(outcomeJSON(outcome, opt.save, opt.resultsPath))
		return nil
	}
	printOutcome(outcome)
	if opt.save {
		fmt.Printf("Results appended to %s\n", opt.resultsPath)
	}
	return nil
}

// requestObserver echoes one line per request when --print is set. It writes
// directly to stdout inside the request loop, matching the reference client.
func requestObserver() bench.Observer {
	if jsonOutput {
		return nil
	}
	return func(index int, status, message string, latency time.Duration) {
		label := okLabel
		if status != "OK" && status != "PONG" {
			label = errorLabel
		}
		fmt.Printf("Request %d: %s %s (%.4fs)\n", index, label.Sprint(status), message, latency.Seconds())
	}
}

func printOutcome(outcome *bench.Outcome) {
	res := outcome.Result
	fmt.Println()
	fmt.Printf("Test type:         %s\n", res.TestType)
	fmt.Printf("Total requests:    %d\n", res.TotalRequests)
	fmt.Printf("Successful:        %s\n", okLabel.Sprint(res.Successful))
	if res.Failed > 0 {
		fmt.Printf("Failed:            %s\n", errorLabel.Sprint(res.Failed))
	} else {
		fmt.Printf("Failed:            %d\n", res.Failed)
	}
	fmt.Printf("Total time:        %.2fs\n", res.TotalTime.Seconds())
	fmt.Printf("Requests/s:        %.2f\n", res.RequestsPerSec)
	fmt.Printf("Avg response time: %.4fs\n", res.AvgResponseTime.Seconds())
	if outcome.LogPath != "" {
		fmt.Printf("Request log:       %s\n", outcome.LogPath)
	}
	printFailureBreakdown(outcome.ErrorTypes)
}

// printFailureBreakdown lists failed requests grouped by status, most
// frequent first.
func printFailureBreakdown(errorTypes map[string]int) {
	if len(errorTypes) == 0 {
		return
	}
	statuses := make([]string, 0, len(errorTypes))
	for status := range errorTypes {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if errorTypes[statuses[i]] != errorTypes[statuses[j]] {
			return errorTypes[statuses[i]] > errorTypes[statuses[j]]
		}
		return statuses[i] < statuses[j]
	})
	fmt.Println("\nFailures by status:")
	for _, status := range statuses {
		fmt.Printf("  %s: %d\n", errorLabel.Sprint(status), errorTypes[status])
	}
}

func outcomeJSON(outcome *bench.Outcome, saved bool, resultsPath string) map[string]any {
	res := outcome.Result
	out := map[string]any{
		"test_type":         res.TestType,
		"total_requests":    res.TotalRequests,
		"successful":        res.Successful,
		"failed":            res.Failed,
		"total_time":        res.TotalTime.Seconds(),
		"requests_per_sec":  res.RequestsPerSec,
		"avg_response_time": res.AvgResponseTime.Seconds(),
		"timestamp":         res.Timestamp.Format(time.RFC3339),
	}
	if len(outcome.ErrorTypes) > 0 {
		out["failures_by_status"] = outcome.ErrorTypes
	}
	if outcome.LogPath != "" {
		out["request_log"] = outcome.LogPath
	}
	if saved {
		out["results_csv"] = resultsPath
	}
	return out
}

// addTargetFlags registers the flags every server-facing command shares.
func addTargetFlags(cmd *cobra.Command, target, transport *string) {
	cmd.Flags().StringVarP(target, "target", "t", "127.0.0.1:5000", "Server address as host:port")
	cmd.Flags().StringVar(transport, "transport", "datagram", "Transport to benchmark: datagram or stream")
}
