// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bassosimone/errclass"
	"golang.org/x/net/http/httpproxy"
)

// Agent performs HTTP round trips, owning name resolution, connection
// establishment, TLS and wire framing.
//
// Do blocks and therefore never runs on the [Scheduler] goroutine. It
// returns once the response headers are available; the caller reads and
// closes the body. When establishing the connection exceeds the connect
// timeout, the error wraps a [*ConnectTimeoutError].
type Agent interface {
	Do(ctx context.Context, req *AgentRequest) (*http.Response, error)
}

// AgentRequest is what the orchestrator submits to an [Agent].
type AgentRequest struct {
	// Method is the HTTP method.
	Method string

	// URL is the absolute URL.
	URL string

	// Headers are the normalized outgoing headers.
	Headers http.Header

	// Body is the body source, nil when there is no body.
	Body io.Reader
}

// newHTTPRequest converts an [*AgentRequest] to an [*http.Request].
//
// Header keys are canonicalized, since the HTTP/1.1 writer of [net/http]
// only recognizes canonical keys. A Host header sets the request host.
// The Content-Length is computed by [net/http] from the body source.
func newHTTPRequest(ctx context.Context, req *AgentRequest) (*http.Request, error) {
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, err
	}
	hreq.Header = make(http.Header, len(req.Headers))
	for key, values := range req.Headers {
		for _, value := range values {
			hreq.Header.Add(key, value)
		}
	}
	if host := hreq.Header.Get("Host"); host != "" {
		hreq.Host = host
	}
	hreq.Header.Del("Host")
	return hreq, nil
}

// AgentOptions selects the [Agent] variant.
type AgentOptions struct {
	// ConnectTimeout bounds connection establishment. Zero means no bound.
	ConnectTimeout time.Duration

	// TCPNoDelay is the TCP_NODELAY value for every socket.
	TCPNoDelay bool

	// DisableConnectionReuse selects one connection per request.
	DisableConnectionReuse bool
}

// NewAgentSelector returns a new [*AgentSelector].
func NewAgentSelector(cfg *Config, logger SLogger) *AgentSelector {
	return &AgentSelector{
		Config: cfg,
		LookupProxy: func() string {
			return httpproxy.FromEnvironment().HTTPProxy
		},
		Logger: logger,
		pooled: make(map[AgentOptions]*pooledAgent),
	}
}

// AgentSelector chooses the [Agent] for each request.
//
// When a proxy is configured, every request is sent through that single
// proxy endpoint, dialed with the request connect timeout.
//
// [*AgentSelector.Init] reads the proxy once. [*AgentSelector.GetAgent]
// and [*AgentSelector.CloseIdleConnections] must only be called from
// the [Scheduler] goroutine.
type AgentSelector struct {
	// Config is the common configuration.
	//
	// Set by [NewAgentSelector] to the user-provided config.
	Config *Config

	// LookupProxy returns the proxy URL or an empty string.
	//
	// Set by [NewAgentSelector] to read http_proxy (or HTTP_PROXY)
	// from the environment.
	LookupProxy func() string

	// Logger is the [SLogger] to use.
	//
	// Set by [NewAgentSelector] to the user-provided logger.
	Logger SLogger

	initErr  error
	initOnce sync.Once
	pooled   map[AgentOptions]*pooledAgent
	proxy    *url.URL
}

// Init reads the proxy configuration. Only the first call has an effect;
// later calls return the same result.
func (s *AgentSelector) Init() error {
	s.initOnce.Do(func() {
		s.proxy, s.initErr = parseProxy(s.LookupProxy())
		s.Logger.Info(
			"agentSelectorInit",
			slog.Any("err", s.initErr),
			slog.String("proxy", proxyString(s.proxy)),
		)
	})
	return s.initErr
}

// Proxy returns the proxy URL read by [*AgentSelector.Init] or nil.
func (s *AgentSelector) Proxy() *url.URL {
	return s.proxy
}

// GetAgent returns the [Agent] for opts.
//
// Requests with DisableConnectionReuse get a fresh single-use agent.
// Other requests share a pooled agent per distinct opts value.
func (s *AgentSelector) GetAgent(opts AgentOptions) Agent {
	dialer := newAgentDialer(s.Config, opts, s.Logger)
	if opts.DisableConnectionReuse {
		return newSingleUseAgent(s.Config, dialer, s.proxy, s.Logger)
	}
	agent, found := s.pooled[opts]
	if !found {
		agent = newPooledAgent(s.Config, dialer, s.proxy, s.Logger)
		s.pooled[opts] = agent
	}
	return agent
}

// CloseIdleConnections closes the idle connections of pooled agents.
func (s *AgentSelector) CloseIdleConnections() {
	for _, agent := range s.pooled {
		agent.txp.CloseIdleConnections()
	}
}

// parseProxy parses the proxy setting, accepting "host:port" without
// a scheme. The empty string means no proxy.
func parseProxy(value string) (*url.URL, error) {
	if value == "" {
		return nil, nil
	}
	if !strings.Contains(value, "://") {
		value = "http://" + value
	}
	proxy, err := url.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("fido: invalid proxy %q: %w", value, err)
	}
	if proxy.Scheme != "http" || proxy.Hostname() == "" {
		return nil, fmt.Errorf("fido: unsupported proxy %q", value)
	}
	return proxy, nil
}

func proxyString(proxy *url.URL) string {
	if proxy == nil {
		return ""
	}
	return proxy.Redacted()
}

// endpointOf returns the "host:port" endpoint of u, defaulting the port
// from the scheme.
func endpointOf(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// errConnectTimeout is the cause of the context bounding connection
// establishment when the connect timeout expires.
var errConnectTimeout = errors.New("connect_timeout expired")

// agentDialer establishes connections for both agent variants.
type agentDialer struct {
	cfg     *Config
	connect *ConnectFunc
	logger  SLogger
	observe *ObserveConnFunc
	timeout time.Duration
}

func newAgentDialer(cfg *Config, opts AgentOptions, logger SLogger) *agentDialer {
	return &agentDialer{
		cfg:     cfg,
		connect: NewConnectFunc(cfg, opts.TCPNoDelay, logger),
		logger:  logger,
		observe: NewObserveConnFunc(cfg, logger),
		timeout: opts.ConnectTimeout,
	}
}

// Dial connects to endpoint. It has the signature of
// [http.Transport.DialContext].
func (d *agentDialer) Dial(ctx context.Context, network, endpoint string) (net.Conn, error) {
	pipeline := Compose3(ConstFunc(endpoint), Func[string, net.Conn](d.connect), Func[net.Conn, net.Conn](d.observe))
	return withConnectTimeout(ctx, d.timeout, pipeline)
}

// DialTLS connects to endpoint and performs the TLS handshake,
// offering alpn. Both steps are bounded by the connect timeout.
func (d *agentDialer) DialTLS(ctx context.Context, endpoint string, alpn []string) (TLSConn, error) {
	host, _, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, err
	}
	tlsConfig := d.tlsConfig()
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = host
	}
	tlsConfig.NextProtos = alpn
	handshake := NewTLSHandshakeFunc(d.cfg, tlsConfig, d.logger)
	pipeline := Compose4(
		ConstFunc(endpoint),
		Func[string, net.Conn](d.connect),
		Func[net.Conn, net.Conn](d.observe),
		Func[net.Conn, TLSConn](handshake),
	)
	return withConnectTimeout(ctx, d.timeout, pipeline)
}

func (d *agentDialer) tlsConfig() *tls.Config {
	if d.cfg.TLSConfig == nil {
		return &tls.Config{}
	}
	return d.cfg.TLSConfig.Clone()
}

// withConnectTimeout runs pipeline bounded by timeout, when positive,
// marking failures caused by the timeout, or by the kernel giving up on
// the TCP handshake, as [*ConnectTimeoutError].
func withConnectTimeout[T any](ctx context.Context, timeout time.Duration, pipeline Func[Unit, T]) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, errConnectTimeout)
		defer cancel()
	}
	value, err := pipeline.Call(ctx, Unit{})
	if err != nil && isConnectTimeout(ctx, err) {
		return value, &ConnectTimeoutError{Err: err}
	}
	return value, err
}

func isConnectTimeout(ctx context.Context, err error) bool {
	if errors.Is(context.Cause(ctx), errConnectTimeout) {
		return true
	}
	return ctx.Err() == nil && errclass.New(err) == errclass.ETIMEDOUT
}
