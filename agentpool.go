// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"
)

// pooledAgent is the default [Agent]. It keeps idle connections and
// reuses them across requests sharing the same [AgentOptions].
type pooledAgent struct {
	cfg    *Config
	logger SLogger
	txp    *http.Transport
}

var _ Agent = &pooledAgent{}

func newPooledAgent(cfg *Config, dialer *agentDialer, proxy *url.URL, logger SLogger) *pooledAgent {
	txp := &http.Transport{
		DialContext: dialer.Dial,
		DialTLSContext: func(ctx context.Context, network, endpoint string) (net.Conn, error) {
			return dialer.DialTLS(ctx, endpoint, []string{"http/1.1"})
		},
		DisableCompression:  true,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 64,
		TLSClientConfig:     dialer.tlsConfig(),
	}
	if proxy != nil {
		// HTTPS targets are reached with CONNECT over a connection made by
		// DialContext; the transport runs the handshake using TLSClientConfig.
		txp.Proxy = http.ProxyURL(proxy)
	}
	return &pooledAgent{cfg: cfg, logger: logger, txp: txp}
}

// Do implements [Agent].
func (a *pooledAgent) Do(ctx context.Context, req *AgentRequest) (*http.Response, error) {
	hreq, err := newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	t0 := a.cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	logRoundTripStart(a.logger, nil, hreq, t0, deadline)
	resp, err := a.txp.RoundTrip(hreq)
	logRoundTripDone(a.logger, a.cfg.ErrClassifier, nil, hreq, t0, deadline, resp, err, a.cfg.TimeNow())
	if err != nil {
		return nil, err
	}
	resp.Body = httpBodyWrap(resp.Body, a.cfg.ErrClassifier, nil, a.logger, a.cfg.TimeNow)
	return resp, nil
}
