package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pingmark/pingmark/internal/cli"
)

// The CLI keeps structured logging quiet so benchmark output stays readable;
// PINGMARK_LOG=debug turns it back on for troubleshooting.
func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	level := zerolog.WarnLevel
	if env := os.Getenv("PINGMARK_LOG"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

func main() {
	cli.Execute()
}
