package bench

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/pingmark/pingmark/internal/common/apperrors"
)

// Preflight checks that the target answers the session protocol before a
// benchmark starts. It opens and immediately closes a throwaway session,
// retrying with backoff so a server that is still coming up does not fail
// the whole run. Callers treat a preflight failure as a warning, not a
// hard error.
func Preflight(ctx context.Context, cfg Config) apperrors.Error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.applyDefaults(time.Now())

	err := retry.Do(func() error {
		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.OpenSession(); err != nil {
			return err
		}
		return client.CloseSession()
	}, retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("target", cfg.Target).Msg("preflight probe failed")
		}))
	if err != nil {
		return ErrProbeFailed.Err(err)
	}
	return nil
}
