package apperrors

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("TestError", func(t *testing.T) {
		ErrBaseErr := New("base error")
		assert.Equal(t, "base error", ErrBaseErr.Error())
		assert.Equal(t, "msg", ErrBaseErr.New("msg").Error())
		assert.ErrorIs(t, ErrBaseErr, ErrBaseErr)

		ErrFirstLevel := ErrBaseErr.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBaseErr)

		ErrAnotherErr := New("another error")
		ErrAnotherErrMsg := ErrAnotherErr.Msg("another error msg")
		ErrYetAnotherErr := New("yet another error")
		ErrYetAnotherErrMsg := ErrYetAnotherErr.Msg("yet another error msg")
		ErrWrappedErr := ErrFirstLevel.Err(ErrAnotherErrMsg, ErrYetAnotherErrMsg)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrFirstLevel)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErrMsg)
		assert.ErrorIs(t, ErrWrappedErr, ErrYetAnotherErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrYetAnotherErrMsg)

		err := errors.New("error")
		ErrWrappedErr = ErrFirstLevel.Err(err)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)

		ErrWrappedErr = ErrFirstLevel.MsgErr("msg", err)
		assert.Equal(t, "msg", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)

		ErrAnotherGoErr := fmt.Errorf("another error")
		ErrYetAnotherGoErr := fmt.Errorf("yet another error")
		ErrWrappedGoErr := ErrFirstLevel.Err(ErrAnotherGoErr, ErrYetAnotherGoErr)
		assert.Equal(t, "first level", ErrWrappedGoErr.Error())
		assert.ErrorIs(t, ErrWrappedGoErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedGoErr, ErrAnotherGoErr)
		assert.ErrorIs(t, ErrWrappedGoErr, ErrYetAnotherGoErr)
	})
}

func TestErrorStatus(t *testing.T) {
	ErrRequestFailed := New("request failed").SetStatus("ERROR")
	assert.Equal(t, "ERROR", ErrRequestFailed.Status())

	// derived errors inherit the status
	ErrTimedOut := ErrRequestFailed.New("request timed out").SetStatus("TIMEOUT")
	assert.Equal(t, "TIMEOUT", ErrTimedOut.Status())
	assert.ErrorIs(t, ErrTimedOut, ErrRequestFailed)

	ErrWithCause := ErrTimedOut.Err(fmt.Errorf("i/o timeout"))
	assert.Equal(t, "TIMEOUT", ErrWithCause.Status())

	// StatusOf walks wrap chains built outside this package too
	wrapped := errors.Wrap(ErrTimedOut, "send")
	assert.Equal(t, "TIMEOUT", StatusOf(wrapped, "ERROR"))
	assert.Equal(t, "ERROR", StatusOf(fmt.Errorf("plain"), "ERROR"))
	assert.Equal(t, "ERROR", StatusOf(New("no status"), "ERROR"))
}

func TestErrorAll(t *testing.T) {
	base := New("dispatch failed").SetExpandError(true)
	expanded := base.Err(fmt.Errorf("conn closed"), fmt.Errorf("retry exhausted")).SetExpandError(true)
	assert.Equal(t, "dispatch failed; dispatch failed; conn closed; retry exhausted", expanded.ErrorAll())

	collapsed := expanded.SetExpandError(false)
	assert.Equal(t, "dispatch failed", collapsed.ErrorAll())
}
