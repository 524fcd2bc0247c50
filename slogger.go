//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package fido

// SLogger abstracts the [*slog.Logger] behavior.
//
// Two levels are used: Info for lifecycle events (loop start and stop,
// fetch, connect, TLS handshake, HTTP round trip, body streaming) and
// Debug for per-I/O events (read, write, set deadline).
//
// The [*slog.Logger] type satisfies this interface.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// DefaultSLogger returns a logger discarding all output, following the
// library convention of staying silent unless configured.
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

type discardSLogger struct{}

var _ SLogger = discardSLogger{}

// Debug implements [SLogger].
func (discardSLogger) Debug(msg string, args ...any) {}

// Info implements [SLogger].
func (discardSLogger) Info(msg string, args ...any) {}
