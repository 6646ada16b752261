package bench

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/pingmark/pingmark/internal/common/apperrors"
	"github.com/pingmark/pingmark/pkg/results"
	"github.com/pingmark/pingmark/pkg/wire"
)

// Outcome carries the recorded result of a run plus diagnostic detail that is
// not part of the CSV contract.
type Outcome struct {
	Result     results.Result
	ErrorTypes map[string]int // failed requests grouped by status
	LogPath    string         // request log location when one was written
}

// Run executes one benchmark run to completion or cancellation. Individual
// request failures never abort the run; they are counted and the loop
// proceeds. Cancellation lets the in-flight request finish or time out, then
// assembles a result from the partial statistics.
func Run(ctx context.Context, cfg Config) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	cfg.applyDefaults(started)

	slog := log.With().
		Str("target", cfg.Target).
		Str("transport", string(cfg.Transport)).
		Bool("use_session", cfg.UseSession).
		Logger()

	client, cerr := newClient(cfg)
	if cerr != nil {
		return nil, cerr
	}
	defer client.Close()

	var reqLog *results.RequestLog
	if cfg.WriteFile {
		var err error
		reqLog, err = results.NewRequestLog(cfg.LogPath, cfg.CompressLog)
		if err != nil {
			return nil, err
		}
		defer reqLog.Close()
	}

	// Session setup happens before the timer starts; only the request loop
	// is measured.
	if cfg.UseSession {
		if err := client.OpenSession(); err != nil {
			return nil, err
		}
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	var (
		successful int
		failed     int
		issued     int
		latencySum time.Duration
		errorTypes = make(map[string]int)
	)

	logFailed := false
	start := time.Now()
	for i := 0; i < cfg.Requests; i++ {
		if ctx.Err() != nil {
			slog.Info().Int("issued", issued).Msg("run cancelled")
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				slog.Info().Int("issued", issued).Msg("run cancelled")
				break
			}
		}

		reqStart := time.Now()
		var rsp wire.Response
		var err apperrors.Error
		if cfg.UseSession {
			rsp, err = client.Ping()
		} else {
			rsp, err = client.PingFresh()
		}
		latency := time.Since(reqStart)
		if err != nil {
			rsp = wire.Response{
				Status:  apperrors.StatusOf(err, wire.StatusError),
				Message: err.Error(),
			}
		}

		issued++
		latencySum += latency
		if rsp.Status == wire.StatusOK || rsp.Status == wire.StatusPong {
			successful++
		} else {
			failed++
			errorTypes[rsp.Status]++
		}

		if cfg.PrintOutput && cfg.Observer != nil {
			cfg.Observer(i+1, rsp.Status, rsp.Message, latency)
		}
		if reqLog != nil {
			if lerr := reqLog.Add(i+1, rsp.Status, latency, rsp.Message); lerr != nil && !logFailed {
				logFailed = true
				slog.Warn().Err(lerr).Msg("request log write failed; continuing without further warnings")
			}
		}
	}
	totalTime := time.Since(start)

	if cfg.UseSession {
		if err := client.CloseSession(); err != nil {
			slog.Debug().Err(err).Msg("failed to close benchmark session")
		}
	}

	var avg time.Duration
	if issued > 0 {
		avg = latencySum / time.Duration(issued)
	}
	var rps float64
	if totalTime > 0 {
		rps = float64(issued) / totalTime.Seconds()
	}

	testType := results.TestTypeNoSession
	if cfg.UseSession {
		testType = results.TestTypeSession
	}
	outcome := &Outcome{
		Result: results.Result{
			TestType:        testType,
			TotalTime:       totalTime,
			RequestsPerSec:  rps,
			AvgResponseTime: avg,
			TotalRequests:   issued,
			Successful:      successful,
			Failed:          failed,
			UseSession:      cfg.UseSession,
			PrintOutput:     cfg.PrintOutput,
			WriteFile:       cfg.WriteFile,
			Timestamp:       time.Now(),
		},
		ErrorTypes: errorTypes,
	}
	if reqLog != nil {
		outcome.LogPath = reqLog.Path()
	}

	slog.Debug().
		Int("successful", successful).
		Int("failed", failed).
		Dur("total_time", totalTime).
		Msg("run complete")
	return outcome, nil
}

// requestLogPath builds the conventional per-run log name, e.g.
// "output_20260102_150405.csv" (".sz" appended when compressed).
func requestLogPath(start time.Time, compressed bool) string {
	path := results.TimestampedPath("output", start)
	if compressed {
		path += ".sz"
	}
	return path
}
