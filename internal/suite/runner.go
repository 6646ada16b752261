package suite

import (
	"context"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/pingmark/pingmark/internal/bench"
	"github.com/pingmark/pingmark/pkg/results"
)

// RunReport summarizes one driven suite.
type RunReport struct {
	Runs       int    // benchmark runs executed (entries times repeats)
	Successful int    // total successful requests across all runs
	Failed     int    // total failed requests across all runs
	Cancelled  bool   // the suite stopped early on context cancellation
	ResultsCSV string // where the result rows went
}

// Runner executes a suite sequentially. One run at a time keeps per-request
// timings comparable between entries; a concurrent driver would have runs
// contending for the same server and skew each other's latencies.
type Runner struct {
	Suite    *Suite
	Observer bench.Observer // forwarded to entries with print enabled
}

// Run drives every entry of the suite and records each result. A failing
// run stops the suite; individual request failures within a run do not.
// Cancellation finishes the run in flight and skips the rest, leaving the
// rows recorded so far intact.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	resultsPath := r.Suite.Results
	if resultsPath == "" {
		resultsPath = results.TimestampedPath("benchmark_results", time.Now())
	}
	rec, err := results.NewCSVRecorder(resultsPath)
	if err != nil {
		return nil, err
	}
	defer rec.Close()

	report := &RunReport{ResultsCSV: resultsPath}
	for i := range r.Suite.Runs {
		entry := &r.Suite.Runs[i]
		cfg, err := r.configFor(entry)
		if err != nil {
			return report, errors.Wrapf(err, "run %q", r.entryName(i))
		}

		repeat := entry.Repeat
		if repeat <= 0 {
			repeat = 1
		}
		for n := 0; n < repeat; n++ {
			if ctx.Err() != nil {
				report.Cancelled = true
				log.Info().Str("entry", r.entryName(i)).Msg("suite cancelled")
				return report, nil
			}
			log.Debug().
				Str("entry", r.entryName(i)).
				Int("repeat", n+1).
				Msg("starting run")

			outcome, err := bench.Run(ctx, cfg)
			if err != nil {
				return report, errors.Wrapf(err, "run %q", r.entryName(i))
			}
			if err := rec.Record(outcome.Result); err != nil {
				return report, errors.Wrapf(err, "run %q", r.entryName(i))
			}
			report.Runs++
			report.Successful += outcome.Result.Successful
			report.Failed += outcome.Result.Failed
		}
	}
	return report, nil
}

// configFor assembles the benchmark configuration for one entry: suite
// defaults, then the entry's own fields, then its free-form overrides.
func (r *Runner) configFor(e *Entry) (bench.Config, error) {
	timeout, err := parseTimeout(r.Suite.Defaults.Timeout)
	if err != nil {
		return bench.Config{}, err
	}

	cfg := bench.Config{
		Target:      r.Suite.Defaults.Target,
		Transport:   bench.Transport(r.Suite.transportFor(e)),
		Requests:    r.Suite.Defaults.Requests,
		UseSession:  e.UseSession,
		PrintOutput: e.Print,
		WriteFile:   e.File,
		Timeout:     timeout,
		Rate:        r.Suite.Defaults.Rate,
		Observer:    r.Observer,
	}
	if cfg.Requests == 0 {
		cfg.Requests = 100
	}

	if len(e.Overrides) > 0 {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:     &cfg,
			DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		})
		if err != nil {
			return bench.Config{}, errors.Wrap(err, "failed to build override decoder")
		}
		if err := decoder.Decode(e.Overrides); err != nil {
			return bench.Config{}, errors.Wrap(err, "invalid overrides")
		}
	}
	return cfg, nil
}

// entryName names an entry for logs and errors, falling back to its position.
func (r *Runner) entryName(i int) string {
	if name := r.Suite.Runs[i].Name; name != "" {
		return name
	}
	return "entry " + strconv.Itoa(i+1)
}
