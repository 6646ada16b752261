package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pingmark/pingmark/internal/common/logtrace"
	"github.com/pingmark/pingmark/internal/sessiond/config"
	"github.com/pingmark/pingmark/internal/sessiond/diag"
	"github.com/pingmark/pingmark/internal/sessiond/server"
	"github.com/pingmark/pingmark/internal/sessiond/session"
)

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile string
}

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run() error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()

	if opt.configFile != "" {
		slog.Info().Str("config_file", opt.configFile).Msg("loading config file")
	}
	if err := config.LoadConfig(opt.configFile); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.Config()
	if err := logtrace.SetLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("setting log level: %w", err)
	}

	store := session.NewStore(cfg.Session.GetTTLOrDefault())

	// Start the datagram server. A bind failure here is the only fatal
	// startup path; everything after this keeps serving through bad input.
	udp, err := server.New(cfg.Addr(), cfg.MaxConnections, store)
	if err != nil {
		return fmt.Errorf("creating datagram server: %w", err)
	}
	serverErrors := make(chan error, 3)
	go func() {
		slog.Info().Str("addr", cfg.Addr()).Msg("datagram server started")
		serverErrors <- udp.Serve()
	}()

	// Start the stream listener when configured.
	var stream *server.StreamServer
	if cfg.Stream.Enabled {
		stream, err = server.NewStream(cfg.StreamAddr(), cfg.MaxConnections)
		if err != nil {
			udp.Stop()
			return fmt.Errorf("creating stream listener: %w", err)
		}
		go func() {
			slog.Info().Str("addr", cfg.StreamAddr()).Msg("stream listener started")
			serverErrors <- stream.Serve()
		}()
	}

	// Start the diagnostics endpoint when configured.
	var diagSrv *http.Server
	if cfg.Diag.Enabled {
		d, err := diag.CreateNewServer(store, udp.ActiveWorkers)
		if err != nil {
			udp.Stop()
			if stream != nil {
				stream.Stop()
			}
			return fmt.Errorf("creating diag server: %w", err)
		}
		d.MountHandlers()
		diagSrv = &http.Server{
			Addr:              cfg.DiagAddr(),
			Handler:           d.Router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info().Str("addr", cfg.DiagAddr()).Msg("diag server started")
			if err := diagSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErrors <- err
			}
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	stopAll := func() {
		udp.Stop()
		if stream != nil {
			stream.Stop()
		}
		if diagSrv != nil {
			diagSrv.Close()
		}
	}

	select {
	case err := <-serverErrors:
		stopAll()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		stopAll()
	}

	slog.Info().Msg("server stopped")
	return nil
}

func parseFlags() cmdoptions {
	opt := cmdoptions{}
	flag.StringVar(&opt.configFile, "config", "", "path to configuration file")
	flag.Parse()
	return opt
}
