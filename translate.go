// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"errors"
	"time"
)

// ErrorTranslator maps transport failures of one request to the public
// error taxonomy.
type ErrorTranslator struct {
	// ConnectTimeout is the request connect timeout, used in messages.
	ConnectTimeout time.Duration

	// Timeout is the request response timeout, used in messages.
	Timeout time.Duration
}

// Translate returns the error to deliver to the caller given the
// failure err and the reason why the request was cancelled, if any.
//
// A cancellation caused by the response timer yields [*HTTPTimeoutError].
// A [*ConnectTimeoutError] yields [*TCPConnectionError]. Every other
// error, including caller cancellation, is returned unmodified.
func (t *ErrorTranslator) Translate(reason CancelReason, err error) error {
	if err == nil {
		return nil
	}
	if reason == CancelTimerFired {
		return &HTTPTimeoutError{ResponseTimeout: t.Timeout, Err: err}
	}
	var cte *ConnectTimeoutError
	if errors.As(err, &cte) {
		return &TCPConnectionError{ConnectTimeout: t.ConnectTimeout, Err: cte.Err}
	}
	return err
}
