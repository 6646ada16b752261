package server

import (
	"github.com/pingmark/pingmark/internal/common/apperrors"
	"github.com/pingmark/pingmark/pkg/wire"
)

// The error messages below are part of the wire contract; clients match on
// them verbatim.
var (
	// ErrDispatchError is the base error for all message dispatch errors.
	ErrDispatchError apperrors.Error = apperrors.New("error processing message").SetStatus(wire.StatusError)

	// ErrInvalidCommand is returned when a message cannot be decoded into a command.
	ErrInvalidCommand apperrors.Error = ErrDispatchError.New("Invalid Command")

	// ErrInvalidSession is returned when a message references an absent or expired session.
	ErrInvalidSession apperrors.Error = ErrDispatchError.New("Invalid Session")

	// ErrUnknownCommand is returned when a decoded command has no handler.
	ErrUnknownCommand apperrors.Error = ErrDispatchError.New("Unknown Command")
)
