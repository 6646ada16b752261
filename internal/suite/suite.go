// Package suite drives batches of benchmark runs from a declarative YAML
// file. A suite names a shared set of defaults and a list of run entries;
// the driver executes them sequentially and records every result into one
// results CSV so external tooling can compare them in a single join.
package suite

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/pingmark/pingmark/internal/bench"
)

// Defaults is the base configuration shared by every entry in a suite.
// Entries override individual fields; anything left unset here falls back to
// the bench package defaults.
type Defaults struct {
	Target    string  `yaml:"target" validate:"required"`
	Transport string  `yaml:"transport"`
	Requests  int     `yaml:"requests" validate:"gte=0"`
	Timeout   string  `yaml:"timeout"`
	Rate      float64 `yaml:"rate" validate:"gte=0"`
}

// Entry describes one benchmark configuration within a suite. Repeat runs
// the same configuration several times back to back, producing one result
// row per repetition, the way recorded baselines were collected.
type Entry struct {
	Name       string         `yaml:"name"`
	Transport  string         `yaml:"transport"`
	UseSession bool           `yaml:"use_session"`
	Print      bool           `yaml:"print"`
	File       bool           `yaml:"file"`
	Repeat     int            `yaml:"repeat"`
	Overrides  map[string]any `yaml:"overrides"`
}

// Suite is a parsed suite file.
type Suite struct {
	Defaults Defaults `yaml:"defaults"`
	Results  string   `yaml:"results"`
	Runs     []Entry  `yaml:"runs" validate:"min=1,dive"`
}

var suiteValidator = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read suite file")
	}
	s := &Suite{}
	if err := yaml.Unmarshal(content, s); err != nil {
		return nil, errors.Wrap(err, "failed to parse suite file")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the suite for fields the driver cannot default.
func (s *Suite) Validate() error {
	if err := suiteValidator.Struct(s); err != nil {
		return errors.Wrap(err, "invalid suite")
	}
	for i := range s.Runs {
		if s.Runs[i].Repeat < 0 {
			return errors.Errorf("run %d: repeat must not be negative", i+1)
		}
		switch bench.Transport(s.transportFor(&s.Runs[i])) {
		case bench.TransportDatagram, bench.TransportStream, "":
		default:
			return errors.Errorf("run %d: unknown transport %q", i+1, s.transportFor(&s.Runs[i]))
		}
	}
	return nil
}

// transportFor resolves an entry's transport against the suite defaults.
func (s *Suite) transportFor(e *Entry) string {
	if e.Transport != "" {
		return e.Transport
	}
	return s.Defaults.Transport
}

// FullMatrix builds the built-in suite covering every combination of
// session mode, print output, and request logging for one transport;
// the sweep the original tooling collected its baselines with.
func FullMatrix(target string, transport string, requests, repeat int) *Suite {
	s := &Suite{
		Defaults: Defaults{
			Target:    target,
			Transport: transport,
			Requests:  requests,
		},
	}
	for _, useSession := range []bool{true, false} {
		for _, echo := range []bool{false, true} {
			for _, file := range []bool{false, true} {
				s.Runs = append(s.Runs, Entry{
					Name:       matrixName(useSession, echo, file),
					UseSession: useSession,
					Print:      echo,
					File:       file,
					Repeat:     repeat,
				})
			}
		}
	}
	return s
}

func matrixName(useSession, echo, file bool) string {
	name := "no-session"
	if useSession {
		name = "session"
	}
	if echo {
		name += "+print"
	}
	if file {
		name += "+file"
	}
	return name
}

// parseTimeout turns the suite's string timeout into a duration, tolerating
// an empty value.
func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrap(err, "invalid timeout")
	}
	return d, nil
}
