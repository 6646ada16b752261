package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pingmark/pingmark/internal/bench"
)

func newProbeCmd() *cobra.Command {
	var (
		target    string
		transport string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that a server answers the session protocol",
		Long: `probe opens and immediately closes one throwaway session, retrying with
backoff. It exits non-zero when the server does not answer, so it can gate a
benchmark in scripts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := bench.Config{
				Target:    target,
				Transport: bench.Transport(transport),
				Requests:  1,
				Timeout:   timeout,
			}
			if err := bench.Preflight(ctx, cfg); err != nil {
				if jsonOutput {
					printJSON(map[string]any{"target": target, "reachable": false, "error": err.Error()})
					return ErrAlreadyHandled
				}
				return err
			}
			if jsonOutput {
				printJSON(map[string]any{"target": target, "reachable": true})
			} else {
				okLabel.Print("OK")
				fmt.Printf(" %s answers the session protocol\n", target)
			}
			return nil
		},
	}
	addTargetFlags(cmd, &target, &transport)
	cmd.Flags().DurationVar(&timeout, "timeout", bench.DefaultTimeout, "Per-attempt timeout")
	return cmd
}
