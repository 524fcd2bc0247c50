// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is matched by [*TCPConnectionError] and [*HTTPTimeoutError]
// using [errors.Is], so callers can handle both timeout flavours at once.
var ErrTimeout = errors.New("fido: timeout")

// ErrWaitTimeout is returned by [*Future.Wait] when its own timeout
// expires. The in-flight request keeps running.
var ErrWaitTimeout = errors.New("fido: timed out waiting for the result")

// ErrLoopClosed indicates that the [Scheduler] no longer accepts work.
var ErrLoopClosed = errors.New("fido: event loop closed")

// CancelReason tells why an [*Operation] was cancelled.
//
// Errors are classified by the reason carried with the cancellation,
// never by how long the operation took.
type CancelReason int

const (
	// CancelNone means the operation was not cancelled.
	CancelNone CancelReason = iota

	// CancelTimerFired means the response-phase timer fired.
	CancelTimerFired

	// CancelCallerCancelled means the caller invoked [*Future.Cancel].
	CancelCallerCancelled

	// CancelTransportError means a transport failure aborted the operation.
	CancelTransportError
)

// String implements [fmt.Stringer].
func (r CancelReason) String() string {
	switch r {
	case CancelNone:
		return "none"
	case CancelTimerFired:
		return "timer-fired"
	case CancelCallerCancelled:
		return "caller-cancelled"
	case CancelTransportError:
		return "transport-error"
	default:
		return fmt.Sprintf("CancelReason(%d)", int(r))
	}
}

// CancelledError resolves an [*Operation] cancelled before completing.
type CancelledError struct {
	Reason CancelReason
}

// Error implements error.
func (e *CancelledError) Error() string {
	return "fido: operation cancelled (" + e.Reason.String() + ")"
}

// TCPConnectionError is a connect-phase failure: the connection could not
// be established before connect_timeout expired.
type TCPConnectionError struct {
	ConnectTimeout time.Duration
	Err            error
}

// Error implements error.
func (e *TCPConnectionError) Error() string {
	return fmt.Sprintf(
		"Connection was closed by the agent because there was a problem "+
			"establishing the connection or the connect_timeout=%s was reached: %s",
		e.ConnectTimeout, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TCPConnectionError) Unwrap() error { return e.Err }

// Is makes [TCPConnectionError] match [ErrTimeout].
func (e *TCPConnectionError) Is(target error) bool { return target == ErrTimeout }

// Timeout reports that this is a timeout error.
func (e *TCPConnectionError) Timeout() bool { return true }

// HTTPTimeoutError is a response-phase failure: the server did not send
// the complete response within timeout.
type HTTPTimeoutError struct {
	ResponseTimeout time.Duration
	Err             error
}

// Error implements error.
func (e *HTTPTimeoutError) Error() string {
	return fmt.Sprintf(
		"Connection was closed by fido because the server took more than "+
			"timeout=%s to send the response", e.ResponseTimeout)
}

// Unwrap returns the cancellation that aborted the request.
func (e *HTTPTimeoutError) Unwrap() error { return e.Err }

// Is makes [HTTPTimeoutError] match [ErrTimeout].
func (e *HTTPTimeoutError) Is(target error) bool { return target == ErrTimeout }

// Timeout reports that this is a timeout error.
func (e *HTTPTimeoutError) Timeout() bool { return true }

// GzipDecompressionError indicates that a body declared as gzip could not
// be decompressed.
type GzipDecompressionError struct {
	Err error
}

// Error implements error.
func (e *GzipDecompressionError) Error() string {
	return "fido: cannot decompress gzip body: " + e.Err.Error()
}

// Unwrap returns the decoder error.
func (e *GzipDecompressionError) Unwrap() error { return e.Err }

// ResponseFailedError indicates that some bytes of the response body were
// lost mid-stream.
type ResponseFailedError struct {
	Err error
}

// Error implements error.
func (e *ResponseFailedError) Error() string {
	return "fido: response body bytes lost mid-stream: " + e.Err.Error()
}

// Unwrap returns the read error.
func (e *ResponseFailedError) Unwrap() error { return e.Err }

// ConnectTimeoutError is produced by an [Agent] when establishing a
// connection (TCP connect, TLS handshake) did not complete in time.
//
// The [*ErrorTranslator] maps it to [*TCPConnectionError].
type ConnectTimeoutError struct {
	Err error
}

// Error implements error.
func (e *ConnectTimeoutError) Error() string {
	return "fido: connect timeout: " + e.Err.Error()
}

// Unwrap returns the dial error.
func (e *ConnectTimeoutError) Unwrap() error { return e.Err }
