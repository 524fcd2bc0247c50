//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/httpslog/httpslog.go
//

package fido

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bassosimone/safeconn"
	"github.com/bassosimone/sud"
	"golang.org/x/net/http2"
)

// HTTPConn is an HTTP transport bound to a single, already established
// connection. It is the transport of the single-use agent.
//
// The caller must call [*HTTPConn.Close] when done.
//
// Construct using [NewHTTPConnFunc].
type HTTPConn struct {
	// conn is the underlying connection.
	conn net.Conn

	// txp is the HTTP transport.
	txp http.RoundTripper

	// closeIdleFunc closes idle connections in the transport.
	closeIdleFunc func()

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	Logger SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

// RoundTrip implements [http.RoundTripper].
//
// The response body is wrapped to log httpBodyStreamStart and
// httpBodyStreamDone events.
func (hc *HTTPConn) RoundTrip(req *http.Request) (*http.Response, error) {
	t0 := hc.TimeNow()
	deadline, _ := req.Context().Deadline()
	logRoundTripStart(hc.Logger, hc.conn, req, t0, deadline)
	resp, err := hc.txp.RoundTrip(req)
	logRoundTripDone(hc.Logger, hc.ErrClassifier, hc.conn, req, t0, deadline, resp, err, hc.TimeNow())
	if err != nil {
		return nil, err
	}
	resp.Body = httpBodyWrap(resp.Body, hc.ErrClassifier, hc.conn, hc.Logger, hc.TimeNow)
	return resp, nil
}

// Close closes the transport and the underlying connection.
func (hc *HTTPConn) Close() error {
	hc.closeIdleFunc()
	return hc.conn.Close()
}

// Conn returns the underlying [net.Conn].
func (hc *HTTPConn) Conn() net.Conn {
	return hc.conn
}

func logRoundTripStart(logger SLogger, conn net.Conn, req *http.Request, t0 time.Time, deadline time.Time) {
	logger.Info(
		"httpRoundTripStart",
		slog.Time("deadline", deadline),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpRequestHeaders", req.Header),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
	)
}

func logRoundTripDone(logger SLogger, classifier ErrClassifier, conn net.Conn, req *http.Request,
	t0 time.Time, deadline time.Time, resp *http.Response, err error, t time.Time) {
	var (
		statusCode int
		headers    http.Header
	)
	if resp != nil {
		statusCode = resp.StatusCode
		headers = resp.Header
	}
	logger.Info(
		"httpRoundTripDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", classifier.Classify(err)),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpResponseHeaders", headers),
		slog.Int("httpResponseStatusCode", statusCode),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", t),
	)
}

// HTTPConnFunc wraps an established connection into an [*HTTPConn].
//
// When the connection is a [TLSConn] that negotiated "h2" via ALPN the
// transport speaks HTTP/2, otherwise HTTP/1.1 without keep-alives.
//
// Fields must not be mutated concurrently with calls to [Call].
type HTTPConnFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewHTTPConnFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewHTTPConnFunc] to the user-provided logger.
	Logger SLogger

	// Proxy, when not nil, means the connection leads to this HTTP
	// proxy rather than to the origin server.
	//
	// Set by [NewHTTPConnFunc] to the user-provided value.
	Proxy *url.URL

	// TimeNow is the function to get the current time.
	//
	// Set by [NewHTTPConnFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

// NewHTTPConnFunc returns a new [*HTTPConnFunc]. The proxy may be nil.
func NewHTTPConnFunc(cfg *Config, proxy *url.URL, logger SLogger) *HTTPConnFunc {
	return &HTTPConnFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Proxy:         proxy,
		TimeNow:       cfg.TimeNow,
	}
}

var _ Func[net.Conn, *HTTPConn] = &HTTPConnFunc{}

// Call implements [Func]. It never fails.
func (op *HTTPConnFunc) Call(ctx context.Context, conn net.Conn) (*HTTPConn, error) {
	var alpn string
	if tconn, ok := conn.(TLSConn); ok {
		alpn = tconn.ConnectionState().NegotiatedProtocol
	}

	// The dialer hands out conn exactly once.
	dialer := sud.NewSingleUseDialer(conn)

	var (
		txp           http.RoundTripper
		closeIdleFunc func()
	)
	switch alpn {
	case "h2":
		h2txp := &http2.Transport{
			DialTLSContext:     dialer.DialTLSContext,
			DisableCompression: true,
		}
		txp, closeIdleFunc = h2txp, h2txp.CloseIdleConnections

	default:
		h1txp := &http.Transport{
			DialContext:        dialer.DialContext,
			DialTLSContext:     dialer.DialContext,
			DisableKeepAlives:  true,
			DisableCompression: true,
		}
		if op.Proxy != nil {
			h1txp.Proxy = http.ProxyURL(op.Proxy)
		}
		txp, closeIdleFunc = h1txp, h1txp.CloseIdleConnections
	}

	hc := &HTTPConn{
		conn:          conn,
		txp:           txp,
		closeIdleFunc: closeIdleFunc,
		ErrClassifier: op.ErrClassifier,
		Logger:        op.Logger,
		TimeNow:       op.TimeNow,
	}
	return hc, nil
}
