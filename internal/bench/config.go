// Package bench implements the benchmark harness: transport clients for the
// datagram and stream listeners, the sequential request loop with its timing
// and classification rules, and the preflight probe. Runs are strictly
// sequential so per-request timings stay comparable with recorded baselines.
package bench

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pingmark/pingmark/internal/common/apperrors"
)

// Transport selects which listener a run exercises.
type Transport string

const (
	// TransportDatagram benchmarks the UDP listener with the pipe-delimited
	// protocol.
	TransportDatagram Transport = "datagram"
	// TransportStream benchmarks the TCP listener with newline-delimited
	// commands and JSON responses.
	TransportStream Transport = "stream"
)

// DefaultTimeout bounds one round trip when the configuration does not set
// its own limit.
const DefaultTimeout = 2 * time.Second

// Observer receives per-request outcomes when print output is enabled.
// index is 1-based.
type Observer func(index int, status, message string, latency time.Duration)

// Config describes one benchmark run.
type Config struct {
	Target      string        `validate:"required,hostport"` // host:port of the server under test
	Transport   Transport     `validate:"transport"`
	Requests    int           `validate:"gt=0"`
	UseSession  bool          // reuse one session (or connection) for all requests
	PrintOutput bool          // echo each request to the observer
	WriteFile   bool          // append each request to the request log
	LogPath     string        // request log location; derived from the start time when empty
	CompressLog bool          // snappy-compress the request log
	Timeout     time.Duration `validate:"gte=0"` // per-request bound; DefaultTimeout when zero
	Rate        float64       `validate:"gte=0"` // requests per second; 0 issues back-to-back

	// Observer is consulted only when PrintOutput is set. It runs inside the
	// request loop, so a slow observer slows the run it is observing.
	Observer Observer
}

// Validate reports whether the configuration can drive a run.
func (c *Config) Validate() apperrors.Error {
	if err := V().Struct(c); err != nil {
		return ErrInvalidConfig.Msg(err.Error())
	}
	return nil
}

// applyDefaults fills the optional fields a run needs resolved.
func (c *Config) applyDefaults(start time.Time) {
	if c.Transport == "" {
		c.Transport = TransportDatagram
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.WriteFile && c.LogPath == "" {
		c.LogPath = requestLogPath(start, c.CompressLog)
	}
}

var benchValidator *validator.Validate

// V returns the validator for benchmark configurations.
func V() *validator.Validate {
	if benchValidator == nil {
		benchValidator = validator.New(validator.WithRequiredStructEnabled())
	}
	return benchValidator
}
