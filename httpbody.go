// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bassosimone/safeconn"
)

// httpBodyWrap wraps an HTTP body to emit httpBodyStreamStart on the
// first Read and httpBodyStreamDone on Close, reporting the number of
// bytes read. Close is only logged if at least one Read happened.
func httpBodyWrap(
	body io.ReadCloser,
	errClass ErrClassifier,
	conn net.Conn,
	logger SLogger,
	timeNow func() time.Time,
) io.ReadCloser {
	return &httpBodyWrapper{
		body:     body,
		errClass: errClass,
		laddr:    safeconn.LocalAddr(conn),
		logger:   logger,
		protocol: safeconn.Network(conn),
		raddr:    safeconn.RemoteAddr(conn),
		timeNow:  timeNow,
	}
}

type httpBodyWrapper struct {
	body      io.ReadCloser
	closeOnce sync.Once
	count     atomic.Int64
	didRead   atomic.Bool
	errClass  ErrClassifier
	laddr     string
	logger    SLogger
	protocol  string
	raddr     string
	readOnce  sync.Once
	t0        time.Time
	timeNow   func() time.Time
}

var _ io.ReadCloser = &httpBodyWrapper{}

// Close implements [io.ReadCloser].
func (b *httpBodyWrapper) Close() (err error) {
	b.closeOnce.Do(func() {
		err = b.body.Close()
		if b.didRead.Load() { // acquire: t0 is visible if this returns true
			b.logger.Info(
				"httpBodyStreamDone",
				slog.Any("err", err),
				slog.String("errClass", b.errClass.Classify(err)),
				slog.Int64("ioBytesCount", b.count.Load()),
				slog.String("localAddr", b.laddr),
				slog.String("protocol", b.protocol),
				slog.String("remoteAddr", b.raddr),
				slog.Time("t0", b.t0),
				slog.Time("t", b.timeNow()),
			)
		}
	})
	return
}

// Read implements [io.ReadCloser].
func (b *httpBodyWrapper) Read(buffer []byte) (int, error) {
	b.readOnce.Do(func() {
		b.t0 = b.timeNow()
		b.didRead.Store(true) // release: makes t0 visible to Close
		b.logger.Info(
			"httpBodyStreamStart",
			slog.String("localAddr", b.laddr),
			slog.String("protocol", b.protocol),
			slog.String("remoteAddr", b.raddr),
			slog.Time("t", b.t0),
		)
	})
	count, err := b.body.Read(buffer)
	b.count.Add(int64(count))
	return count, err
}
