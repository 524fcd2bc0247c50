//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/netxlite/dialer.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package fido

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
)

// Dialer abstracts the [*net.Dialer] behavior.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewConnectFunc returns a new [*ConnectFunc] dialing TCP.
//
// The tcpNoDelay argument selects the TCP_NODELAY socket option.
func NewConnectFunc(cfg *Config, tcpNoDelay bool, logger SLogger) *ConnectFunc {
	return &ConnectFunc{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TCPNoDelay:    tcpNoDelay,
		TimeNow:       cfg.TimeNow,
	}
}

// ConnectFunc dials a "host:port" endpoint over TCP and configures the
// TCP_NODELAY option of the resulting socket.
//
// Name resolution is left to the [Dialer]. Returns either a valid
// [net.Conn] or an error, never both.
//
// Fields must not be mutated concurrently with calls to [Call].
type ConnectFunc struct {
	// Dialer is the [Dialer] to use.
	//
	// Set by [NewConnectFunc] from [Config.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConnectFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewConnectFunc] to the user-provided logger.
	Logger SLogger

	// TCPNoDelay is the value for TCP_NODELAY. When true, small writes
	// are sent immediately rather than coalesced.
	//
	// Set by [NewConnectFunc] to the user-provided value.
	TCPNoDelay bool

	// TimeNow is the function to get the current time.
	//
	// Set by [NewConnectFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[string, net.Conn] = &ConnectFunc{}

// noDelaySetter is implemented by [*net.TCPConn].
type noDelaySetter interface {
	SetNoDelay(noDelay bool) error
}

// Call dials the given endpoint.
func (op *ConnectFunc) Call(ctx context.Context, endpoint string) (net.Conn, error) {
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logConnectStart(endpoint, t0, deadline)
	conn, err := op.Dialer.DialContext(ctx, "tcp", endpoint)
	if err == nil {
		err = op.configure(conn)
	}
	op.logConnectDone(endpoint, t0, deadline, conn, err)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (op *ConnectFunc) configure(conn net.Conn) error {
	setter, ok := conn.(noDelaySetter)
	if !ok {
		return nil
	}
	if err := setter.SetNoDelay(op.TCPNoDelay); err != nil {
		conn.Close()
		return err
	}
	return nil
}

func (op *ConnectFunc) logConnectStart(address string, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
		slog.Bool("tcpNoDelay", op.TCPNoDelay),
	)
}

func (op *ConnectFunc) logConnectDone(address string, t0 time.Time, deadline time.Time, conn net.Conn, err error) {
	op.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
