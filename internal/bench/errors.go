package bench

import (
	"github.com/pingmark/pingmark/internal/common/apperrors"
	"github.com/pingmark/pingmark/pkg/wire"
)

// Failure statuses mirror what the reference clients report: transport
// timeouts and resets get their own statuses so recorded runs can separate
// them from protocol-level errors. The timeout and reset message texts appear
// verbatim in request logs and must stay stable.
var (
	ErrBench           = apperrors.New("benchmark error").SetStatus(wire.StatusError)
	ErrInvalidConfig   apperrors.Error = ErrBench.New("invalid benchmark configuration")
	ErrConnectFailed   apperrors.Error = ErrBench.New("unable to reach target")
	ErrSessionSetup    apperrors.Error = ErrBench.New("failed to create session")
	ErrRequestFailed   apperrors.Error = ErrBench.New("request failed")
	ErrInvalidResponse apperrors.Error = ErrBench.New("Invalid response format")
	ErrProbeFailed     apperrors.Error = ErrBench.New("preflight probe failed")

	ErrTimeout apperrors.Error = ErrRequestFailed.New("Request timed out").SetStatus(wire.StatusTimeout)
	ErrReset   apperrors.Error = ErrRequestFailed.New("Connection reset by peer").SetStatus(wire.StatusReset)
)
