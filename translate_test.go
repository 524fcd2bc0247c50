// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTranslator(t *testing.T) {
	translator := &ErrorTranslator{ConnectTimeout: 2 * time.Second, Timeout: 5 * time.Second}
	dialErr := errors.New("i/o timeout")

	t.Run("nil error", func(t *testing.T) {
		assert.NoError(t, translator.Translate(CancelTimerFired, nil))
	})

	t.Run("timer fired", func(t *testing.T) {
		cause := &CancelledError{Reason: CancelTimerFired}

		err := translator.Translate(CancelTimerFired, cause)

		var timeoutErr *HTTPTimeoutError
		require.ErrorAs(t, err, &timeoutErr)
		assert.Equal(t, 5*time.Second, timeoutErr.ResponseTimeout)
		assert.Contains(t, err.Error(), "timeout=5s")
		assert.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("timer fired wins over connect timeout", func(t *testing.T) {
		err := translator.Translate(CancelTimerFired, &ConnectTimeoutError{Err: dialErr})

		var timeoutErr *HTTPTimeoutError
		require.ErrorAs(t, err, &timeoutErr)
	})

	t.Run("connect timeout", func(t *testing.T) {
		err := translator.Translate(CancelNone, &ConnectTimeoutError{Err: dialErr})

		var connErr *TCPConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, 2*time.Second, connErr.ConnectTimeout)
		assert.Contains(t, err.Error(), "connect_timeout=2s")
		assert.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, dialErr)
	})

	t.Run("passthrough", func(t *testing.T) {
		for _, wantErr := range []error{
			syscall.ECONNREFUSED,
			&ResponseFailedError{Err: errors.New("reset")},
			&CancelledError{Reason: CancelCallerCancelled},
		} {
			assert.Equal(t, wantErr, translator.Translate(CancelCallerCancelled, wantErr))
		}
	})
}

func TestTimeoutErrors(t *testing.T) {
	for _, err := range []interface {
		error
		Timeout() bool
	}{
		&TCPConnectionError{Err: errors.New("x")},
		&HTTPTimeoutError{Err: errors.New("x")},
	} {
		assert.True(t, err.Timeout())
		assert.ErrorIs(t, err, ErrTimeout)
	}
	assert.NotErrorIs(t, &GzipDecompressionError{Err: errors.New("x")}, ErrTimeout)
}

func TestCancelReasonString(t *testing.T) {
	assert.Equal(t, "none", CancelNone.String())
	assert.Equal(t, "timer-fired", CancelTimerFired.String())
	assert.Equal(t, "caller-cancelled", CancelCallerCancelled.String())
	assert.Equal(t, "transport-error", CancelTransportError.String())
	assert.Equal(t, "CancelReason(42)", CancelReason(42).String())
}
