// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"context"
	"crypto/tls"
	"errors"
	"testing"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/tlsstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewCancelWatchFunc populates all fields from Config and the provided logger.
func TestNewCancelWatchFunc(t *testing.T) {
	fn := NewCancelWatchFunc(NewConfig(), DefaultSLogger())
	require.NotNil(t, fn)
	assert.NotNil(t, fn.Logger)
	assert.NotNil(t, fn.TimeNow)
}

// Call returns a wrapped conn that delegates Close to the underlying conn.
func TestCancelWatchFuncCall(t *testing.T) {
	fn := NewCancelWatchFunc(NewConfig(), DefaultSLogger())

	closeCalled := false
	mockConn := &netstub.FuncConn{
		CloseFunc: func() error {
			closeCalled = true
			return nil
		},
	}

	result, err := fn.Call(context.Background(), mockConn)

	require.NoError(t, err)
	require.NotNil(t, result)
	require.NoError(t, result.Close())
	assert.True(t, closeCalled)
}

// Cancelling the context closes the underlying conn and logs the cause.
func TestCancelWatchFuncClosesOnCancel(t *testing.T) {
	logger, records := newCapturingLogger()
	fn := NewCancelWatchFunc(NewConfig(), logger)

	done := make(chan struct{})
	mockConn := &netstub.FuncConn{
		CloseFunc: func() error {
			close(done)
			return nil
		},
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	_, err := fn.Call(ctx, mockConn)
	require.NoError(t, err)

	select {
	case <-done:
		t.Fatal("connection should not be closed yet")
	default:
	}

	wantCause := errors.New("request aborted")
	cancel(wantCause)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("connection not closed after cancel")
	}

	record, found := records.Find("cancelWatchClose")
	require.True(t, found)
	value, found := recordAttr(record, "cause")
	require.True(t, found)
	assert.Equal(t, wantCause, value.Any())
}

// Closing the wrapper unregisters the watcher.
func TestCancelWatchFuncCloseUnregisters(t *testing.T) {
	fn := NewCancelWatchFunc(NewConfig(), DefaultSLogger())

	var closeCount int
	mockConn := &netstub.FuncConn{
		CloseFunc: func() error {
			closeCount++
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	result, err := fn.Call(ctx, mockConn)
	require.NoError(t, err)
	require.NoError(t, result.Close())

	cancel()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, closeCount)
}

// Call preserves the TLSConn interface of TLS connections.
func TestCancelWatchFuncPreservesTLSConn(t *testing.T) {
	fn := NewCancelWatchFunc(NewConfig(), DefaultSLogger())

	mockTLSConn := &tlsstub.FuncTLSConn{
		FuncConn: newMinimalConn(),
		ConnectionStateFunc: func() tls.ConnectionState {
			return tls.ConnectionState{NegotiatedProtocol: "h2"}
		},
	}
	closed := false
	mockTLSConn.FuncConn.CloseFunc = func() error {
		closed = true
		return nil
	}

	result, err := fn.Call(context.Background(), mockTLSConn)
	require.NoError(t, err)

	tconn, ok := result.(TLSConn)
	require.True(t, ok)
	assert.Equal(t, "h2", tconn.ConnectionState().NegotiatedProtocol)
	require.NoError(t, tconn.Close())
	assert.True(t, closed)
}
