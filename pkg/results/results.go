// Package results defines the benchmark result record and the recorders that
// persist it. The CSV column layout is a published contract consumed by
// external analysis tooling and must stay byte-for-byte stable across
// transports so that cross-transport comparisons can join on column names.
package results

import (
	"fmt"
	"strconv"
	"time"
)

// TestTypeSession and TestTypeNoSession are the values of the Test Type
// column. They identify whether the run reused one session for all requests
// or re-established it on every iteration.
const (
	TestTypeSession   = "Session"
	TestTypeNoSession = "No Session"
)

// Header is the column layout of the results CSV, in order. Do not reorder
// or rename columns; downstream tooling joins on them.
var Header = []string{
	"Test Type",
	"Total Time",
	"Requests/s",
	"Avg Response Time",
	"Total Requests",
	"Successful",
	"Failed",
	"Use Session",
	"Print Output",
	"Write File",
	"Timestamp",
}

// Result is the aggregate outcome of one benchmark run. It is assembled once
// when the run finishes and not mutated afterwards.
type Result struct {
	TestType        string        // TestTypeSession or TestTypeNoSession
	TotalTime       time.Duration // wall clock spanning the request loop
	RequestsPerSec  float64       // issued requests divided by TotalTime
	AvgResponseTime time.Duration // mean of per-request round trips
	TotalRequests   int           // requests issued (may be short of the target on cancellation)
	Successful      int
	Failed          int
	UseSession      bool // echo of the run configuration
	PrintOutput     bool
	WriteFile       bool
	Timestamp       time.Time
}

// Row renders the result as one CSV row matching Header. Durations are
// seconds with two decimals for totals and four for latencies; booleans are
// rendered capitalized to stay comparable with previously recorded runs.
func (r Result) Row() []string {
	return []string{
		r.TestType,
		fmt.Sprintf("%.2f", r.TotalTime.Seconds()),
		fmt.Sprintf("%.2f", r.RequestsPerSec),
		fmt.Sprintf("%.4f", r.AvgResponseTime.Seconds()),
		strconv.Itoa(r.TotalRequests),
		strconv.Itoa(r.Successful),
		strconv.Itoa(r.Failed),
		formatBool(r.UseSession),
		formatBool(r.PrintOutput),
		formatBool(r.WriteFile),
		r.Timestamp.Format(time.RFC3339),
	}
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Recorder consumes benchmark results. Implementations must be safe for
// sequential use by a suite driver recording many runs into one destination.
type Recorder interface {
	Record(Result) error
}

// TimestampedPath builds the conventional output filename for a run started
// at t, e.g. "benchmark_results_20260102_150405.csv".
func TimestampedPath(prefix string, t time.Time) string {
	return prefix + "_" + t.Format("20060102_150405") + ".csv"
}
