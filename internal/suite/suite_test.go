package suite

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingmark/pingmark/internal/sessiond/server"
	"github.com/pingmark/pingmark/internal/sessiond/session"
	"github.com/pingmark/pingmark/pkg/results"
)

func startServer(t *testing.T) string {
	t.Helper()
	store := session.NewStore(time.Hour)
	srv, err := server.New("127.0.0.1:0", 16, store)
	require.NoError(t, err)
	go srv.Serve()
	t.Cleanup(srv.Stop)
	return srv.Addr().String()
}

func writeSuiteFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSuite(t *testing.T) {
	path := writeSuiteFile(t, `
defaults:
  target: 127.0.0.1:5000
  requests: 50
  timeout: 500ms
results: out.csv
runs:
  - name: warm
    use_session: true
    repeat: 3
  - name: cold
    transport: stream
    print: true
`)
	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:5000", s.Defaults.Target)
	assert.Equal(t, 50, s.Defaults.Requests)
	assert.Equal(t, "out.csv", s.Results)
	require.Len(t, s.Runs, 2)
	assert.Equal(t, "warm", s.Runs[0].Name)
	assert.True(t, s.Runs[0].UseSession)
	assert.Equal(t, 3, s.Runs[0].Repeat)
	assert.Equal(t, "stream", s.Runs[1].Transport)
	assert.True(t, s.Runs[1].Print)
}

func TestLoadSuiteRejectsBadFiles(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no target", "runs:\n  - name: a\n"},
		{"no runs", "defaults:\n  target: 127.0.0.1:5000\n"},
		{"unknown transport", "defaults:\n  target: 127.0.0.1:5000\nruns:\n  - transport: carrier-pigeon\n"},
		{"negative repeat", "defaults:\n  target: 127.0.0.1:5000\nruns:\n  - repeat: -1\n"},
		{"not yaml", "{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeSuiteFile(t, tc.content))
			require.Error(t, err)
		})
	}
}

func TestLoadSuiteMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestFullMatrix(t *testing.T) {
	s := FullMatrix("127.0.0.1:5000", "datagram", 100, 10)
	require.Len(t, s.Runs, 8)
	require.NoError(t, s.Validate())

	names := make(map[string]bool)
	sessionRuns := 0
	for _, e := range s.Runs {
		assert.False(t, names[e.Name], "duplicate entry name %q", e.Name)
		names[e.Name] = true
		assert.Equal(t, 10, e.Repeat)
		if e.UseSession {
			sessionRuns++
		}
	}
	assert.Equal(t, 4, sessionRuns)
	assert.True(t, names["session"])
	assert.True(t, names["no-session+print+file"])
}

func readResults(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunnerDrivesSuite(t *testing.T) {
	target := startServer(t)
	resultsPath := filepath.Join(t.TempDir(), "results.csv")

	r := &Runner{Suite: &Suite{
		Defaults: Defaults{Target: target, Requests: 5, Timeout: "2s"},
		Results:  resultsPath,
		Runs: []Entry{
			{Name: "warm", UseSession: true, Repeat: 2},
			{Name: "cold"},
		},
	}}
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Runs)
	assert.Equal(t, 15, report.Successful)
	assert.Equal(t, 0, report.Failed)
	assert.False(t, report.Cancelled)
	assert.Equal(t, resultsPath, report.ResultsCSV)

	rows := readResults(t, resultsPath)
	require.Len(t, rows, 4)
	assert.Equal(t, results.Header, rows[0])
	assert.Equal(t, results.TestTypeSession, rows[1][0])
	assert.Equal(t, results.TestTypeSession, rows[2][0])
	assert.Equal(t, results.TestTypeNoSession, rows[3][0])
}

func TestRunnerAppliesOverrides(t *testing.T) {
	target := startServer(t)
	resultsPath := filepath.Join(t.TempDir(), "results.csv")

	r := &Runner{Suite: &Suite{
		Defaults: Defaults{Target: target, Requests: 5},
		Results:  resultsPath,
		Runs: []Entry{{
			Name:      "tuned",
			Overrides: map[string]any{"requests": 3, "timeout": "250ms"},
		}},
	}}
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Successful)

	rows := readResults(t, resultsPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[1][4], "Total Requests reflects the override")
}

func TestRunnerRejectsBadOverrides(t *testing.T) {
	r := &Runner{Suite: &Suite{
		Defaults: Defaults{Target: "127.0.0.1:9", Requests: 1},
		Results:  filepath.Join(t.TempDir(), "results.csv"),
		Runs:     []Entry{{Name: "broken", Overrides: map[string]any{"timeout": "soon"}}},
	}}
	_, err := r.Run(context.Background())
	require.Error(t, err)
}

func TestRunnerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Suite: &Suite{
		Defaults: Defaults{Target: "127.0.0.1:9", Requests: 1},
		Results:  filepath.Join(t.TempDir(), "results.csv"),
		Runs:     []Entry{{Name: "never"}},
	}}
	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 0, report.Runs)
}

func TestRunnerDefaultsResultsPath(t *testing.T) {
	target := startServer(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	tmp := t.TempDir()
	require.NoError(t, os.Chdir(tmp))
	t.Cleanup(func() { os.Chdir(wd) })

	r := &Runner{Suite: &Suite{
		Defaults: Defaults{Target: target, Requests: 1},
		Runs:     []Entry{{Name: "one"}},
	}}
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.ResultsCSV, "benchmark_results_")

	_, err = os.Stat(report.ResultsCSV)
	require.NoError(t, err)
}
