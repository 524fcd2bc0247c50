// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// NewCancelWatchFunc returns a new [*CancelWatchFunc].
func NewCancelWatchFunc(cfg *Config, logger SLogger) *CancelWatchFunc {
	return &CancelWatchFunc{Logger: logger, TimeNow: cfg.TimeNow}
}

// CancelWatchFunc binds a connection to the lifetime of a request: when
// the context is done the connection is closed, so that blocking reads
// and writes of the single-use agent fail promptly.
//
// Closing the returned connection unregisters the watcher. Never use
// this primitive for connections that outlive the context, such as the
// pooled connections of the default agent.
type CancelWatchFunc struct {
	// Logger is the [SLogger] to use.
	//
	// Set by [NewCancelWatchFunc] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time.
	//
	// Set by [NewCancelWatchFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[net.Conn, net.Conn] = &CancelWatchFunc{}

// Call registers a [context.AfterFunc] closing conn when ctx is done.
//
// The returned connection is a [TLSConn] when conn is.
func (op *CancelWatchFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		op.Logger.Info(
			"cancelWatchClose",
			slog.Any("cause", context.Cause(ctx)),
			slog.Time("t", op.TimeNow()),
		)
		conn.Close()
	})
	if tconn, ok := conn.(TLSConn); ok {
		return &cancelWatchedTLSConn{TLSConn: tconn, stop: stop}, nil
	}
	return &cancelWatchedConn{Conn: conn, stop: stop}, nil
}

// cancelWatchedConn wraps a [net.Conn] with a context watcher.
type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

// Close unregisters the watcher and closes the underlying connection.
func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}

// cancelWatchedTLSConn is like [cancelWatchedConn] for a [TLSConn].
type cancelWatchedTLSConn struct {
	TLSConn
	stop func() bool
}

// Close unregisters the watcher and closes the underlying connection.
func (c *cancelWatchedTLSConn) Close() error {
	c.stop()
	return c.TLSConn.Close()
}
