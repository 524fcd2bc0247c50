// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
)

// singleUseAgent is the [Agent] for requests disabling connection reuse:
// each request gets a fresh connection, closed with the response body.
//
// The connection is closed as soon as the request context is done, so
// that the body stream fails promptly when the request is cancelled.
type singleUseAgent struct {
	cancelWatch *CancelWatchFunc
	dialer      *agentDialer
	httpConn    *HTTPConnFunc
	proxy       *url.URL
}

var _ Agent = &singleUseAgent{}

func newSingleUseAgent(cfg *Config, dialer *agentDialer, proxy *url.URL, logger SLogger) *singleUseAgent {
	return &singleUseAgent{
		cancelWatch: NewCancelWatchFunc(cfg, logger),
		dialer:      dialer,
		httpConn:    NewHTTPConnFunc(cfg, proxy, logger),
		proxy:       proxy,
	}
}

// Do implements [Agent].
func (a *singleUseAgent) Do(ctx context.Context, req *AgentRequest) (*http.Response, error) {
	hreq, err := newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	conn, err := a.dial(ctx, hreq.URL)
	if err != nil {
		return nil, err
	}

	// The HTTP stages cannot fail, only the round trip can.
	conn, _ = a.cancelWatch.Call(ctx, conn)
	hc, _ := a.httpConn.Call(ctx, conn)

	resp, err := hc.RoundTrip(hreq)
	if err != nil {
		hc.Close()
		return nil, err
	}
	resp.Body = &singleUseBody{ReadCloser: resp.Body, conn: hc}
	return resp, nil
}

func (a *singleUseAgent) dial(ctx context.Context, target *url.URL) (net.Conn, error) {
	switch {
	case a.proxy != nil:
		return a.dialer.Dial(ctx, "tcp", endpointOf(a.proxy))
	case target.Scheme == "https":
		return a.dialer.DialTLS(ctx, endpointOf(target), []string{"h2", "http/1.1"})
	case target.Scheme == "http":
		return a.dialer.Dial(ctx, "tcp", endpointOf(target))
	default:
		return nil, fmt.Errorf("fido: unsupported URL scheme %q", target.Scheme)
	}
}

// singleUseBody closes the [*HTTPConn] along with the body.
type singleUseBody struct {
	io.ReadCloser
	conn *HTTPConn
	once sync.Once
}

// Close implements [io.Closer].
func (b *singleUseBody) Close() (err error) {
	b.once.Do(func() {
		err = b.ReadCloser.Close()
		b.conn.Close()
	})
	return
}
