// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
	"github.com/bassosimone/tlsstub"
)

// capturedRecords collects log records emitted by any goroutine.
type capturedRecords struct {
	mu      sync.Mutex
	records []slog.Record
}

// Messages returns the messages of the records captured so far.
func (c *capturedRecords) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, record := range c.records {
		out = append(out, record.Message)
	}
	return out
}

// Find returns the first record with the given message.
func (c *capturedRecords) Find(message string) (slog.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range c.records {
		if record.Message == message {
			return record, true
		}
	}
	return slog.Record{}, false
}

// newCapturingLogger returns a logger that captures all log records. The
// caller can inspect them after exercising the code under test to verify
// which events were emitted.
func newCapturingLogger() (*slog.Logger, *capturedRecords) {
	captured := &capturedRecords{}
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			captured.mu.Lock()
			captured.records = append(captured.records, record.Clone())
			captured.mu.Unlock()
			return nil
		},
	}
	return slog.New(handler), captured
}

// recordAttr returns the value of the named attribute of record.
func recordAttr(record slog.Record, key string) (slog.Value, bool) {
	var (
		value slog.Value
		found bool
	)
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			value, found = attr.Value, true
			return false
		}
		return true
	})
	return value, found
}

// newMockTLSEngine returns a [*tlsstub.FuncTLSEngine] that wraps the given
// [TLSConn]. The engine's ClientFunc returns the conn and NameFunc
// returns "mock".
func newMockTLSEngine(conn TLSConn) *tlsstub.FuncTLSEngine[TLSConn] {
	return &tlsstub.FuncTLSEngine[TLSConn]{
		ClientFunc: func(c net.Conn, config *tls.Config) TLSConn {
			return conn
		},
		NameFunc: func() string {
			return "mock"
		},
		ParrotFunc: func() string {
			return ""
		},
	}
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network]
// during construction.
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
	}
}
