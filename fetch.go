// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// AgentProvider is the [*AgentSelector] behavior used by [*Client].
type AgentProvider interface {
	// Init performs the one-time setup, such as reading the proxy
	// configuration. It is called on the caller goroutine.
	Init() error

	// GetAgent returns the [Agent] for opts. It is called on the
	// [Scheduler] goroutine.
	GetAgent(opts AgentOptions) Agent
}

var _ AgentProvider = &AgentSelector{}

// Client fetches HTTP resources on behalf of any number of goroutines,
// running every orchestration step on a single [Scheduler] goroutine.
//
// Construct using [NewClient].
type Client struct {
	// Agents provides the [Agent] for each request.
	//
	// Set by [NewClient] to an [*AgentSelector].
	Agents AgentProvider

	// DefaultConnectTimeout applies to requests with a zero ConnectTimeout.
	//
	// Set by [NewClient] from [Config.DefaultConnectTimeout].
	DefaultConnectTimeout time.Duration

	// DefaultTimeout applies to requests with a zero Timeout.
	//
	// Set by [NewClient] from [Config.DefaultTimeout].
	DefaultTimeout time.Duration

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewClient] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewClient] to the user-provided logger.
	Logger SLogger

	// Scheduler runs the orchestration.
	//
	// Set by [NewClient] to a [*Loop], started by the first Fetch.
	Scheduler Scheduler

	// TimeNow is the function to get the current time.
	//
	// Set by [NewClient] from [Config.TimeNow].
	TimeNow func() time.Time

	// UserAgent is added to requests lacking a User-Agent header.
	//
	// Set by [NewClient] from [Config.UserAgent].
	UserAgent string

	// live holds the unresolved tasks; owned by the scheduler goroutine.
	live map[*fetchTask]struct{}
}

// NewClient returns a new [*Client].
func NewClient(cfg *Config, logger SLogger) *Client {
	return &Client{
		Agents:                NewAgentSelector(cfg, logger),
		DefaultConnectTimeout: cfg.DefaultConnectTimeout,
		DefaultTimeout:        cfg.DefaultTimeout,
		ErrClassifier:         cfg.ErrClassifier,
		Logger:                logger,
		Scheduler:             NewLoop(cfg, logger),
		TimeNow:               cfg.TimeNow,
		UserAgent:             cfg.UserAgent,
	}
}

// Fetch submits a request and returns without waiting for the network.
//
// The only errors returned directly are failures of the one-time setup
// (starting the scheduler, reading the proxy configuration). Every other
// failure, including invalid input, is delivered through the [*Future].
// The failure is a [*TCPConnectionError] when the connection could not be
// established within the connect timeout, a [*HTTPTimeoutError] when the
// complete response did not arrive within the timeout, a
// [*GzipDecompressionError] when the body cannot be decompressed, or the
// underlying error otherwise.
func (c *Client) Fetch(args *FetchArgs) (*Future[*Response], error) {
	if err := c.Scheduler.Start(); err != nil {
		return nil, err
	}
	if err := c.Agents.Init(); err != nil {
		return nil, err
	}
	withDefaults := *args
	if withDefaults.Timeout == 0 {
		withDefaults.Timeout = c.DefaultTimeout
	}
	if withDefaults.ConnectTimeout == 0 {
		withDefaults.ConnectTimeout = c.DefaultConnectTimeout
	}
	req := NewRequest(&withDefaults, c.UserAgent)
	return RunInLoop(c.Scheduler, func() (*Operation[*Response], error) {
		return c.startFetch(req)
	}), nil
}

// Close fails every in-flight request with [ErrLoopClosed], releases
// idle connections and stops the [Scheduler], when it is an [io.Closer],
// after running the work already queued.
func (c *Client) Close() error {
	c.Scheduler.Post(c.shutdown)
	if closer, ok := c.Agents.(interface{ CloseIdleConnections() }); ok {
		c.Scheduler.Post(closer.CloseIdleConnections)
	}
	if closer, ok := c.Scheduler.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// shutdown runs on the [Scheduler] goroutine.
func (c *Client) shutdown() {
	for task := range c.live {
		task.shutdown()
	}
}

// fetchState is the state of a [*fetchTask].
type fetchState int

const (
	fetchAwaitingHeaders fetchState = iota
	fetchStreamingBody
	fetchDecompressing
	fetchDone
	fetchFailed
)

// fetchTask is the in-flight state of one request.
//
// It lives on the [Scheduler] goroutine. Transport goroutines only post
// results back to it.
type fetchTask struct {
	body       *BodyAccumulator
	cancel     context.CancelCauseFunc
	client     *Client
	ctx        context.Context
	headers    *Operation[*http.Response]
	req        *Request
	resp       *http.Response
	result     *Operation[*Response]
	spanID     string
	state      fetchState
	t0         time.Time
	timer      Timer
	translator ErrorTranslator
}

// startFetch runs on the [Scheduler] goroutine.
func (c *Client) startFetch(req *Request) (*Operation[*Response], error) {
	if _, err := EncodeToBytes(req.URL); err != nil {
		return nil, fmt.Errorf("fido: url: %w", err)
	}
	if _, err := EncodeToBytes(req.Method); err != nil {
		return nil, fmt.Errorf("fido: method: %w", err)
	}
	headers, err := ListifyHeaders(req.Headers)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
		headers = withoutContentLength(headers)
	}
	if req.DecompressGzip {
		headers = addGzipAcceptEncoding(headers)
	}

	task := &fetchTask{
		client: c,
		req:    req,
		spanID: NewSpanID(),
		state:  fetchAwaitingHeaders,
		t0:     c.TimeNow(),
		translator: ErrorTranslator{
			ConnectTimeout: req.ConnectTimeout,
			Timeout:        req.Timeout,
		},
	}
	task.ctx, task.cancel = context.WithCancelCause(context.Background())
	task.result = NewOperation[*Response](task.cancelCurrent)
	task.result.OnDone(task.finish)
	if c.live == nil {
		c.live = make(map[*fetchTask]struct{})
	}
	c.live[task] = struct{}{}
	task.logStart()

	agent := c.Agents.GetAgent(AgentOptions{
		ConnectTimeout:         req.ConnectTimeout,
		TCPNoDelay:             req.TCPNoDelay,
		DisableConnectionReuse: req.DisableConnectionReuse,
	})
	task.headers = NewOperation[*http.Response](task.abortTransport)
	task.headers.OnDone(task.onHeaders)
	go task.roundTrip(agent, &AgentRequest{
		Method:  req.Method,
		URL:     req.URL,
		Headers: headers,
		Body:    body,
	})

	if req.Timeout > 0 {
		task.timer = c.Scheduler.CallLater(req.Timeout, task.onTimer)
	}
	return task.result, nil
}

// roundTrip runs on a transport goroutine.
func (t *fetchTask) roundTrip(agent Agent, areq *AgentRequest) {
	resp, err := agent.Do(t.ctx, areq)
	posted := t.client.Scheduler.Post(func() {
		if !t.headers.Resolve(resp, err) && resp != nil {
			go resp.Body.Close()
		}
	})
	if !posted && resp != nil {
		resp.Body.Close()
	}
}

func (t *fetchTask) onHeaders(resp *http.Response, err error) {
	if err != nil {
		t.fail(err)
		return
	}
	t.resp = resp
	t.state = fetchStreamingBody
	t.body = NewBodyAccumulator(t.abortTransport)
	t.body.Operation().OnDone(t.onBody)
	go streamBody(t.client.Scheduler, resp, t.body)
}

func (t *fetchTask) onBody(data []byte, err error) {
	if err != nil {
		t.fail(err)
		return
	}
	decoded := false
	if t.req.DecompressGzip && isGzipEncoded(t.resp.Header) {
		t.state = fetchDecompressing
		data, err = DecodeGzip(data)
		if err != nil {
			t.fail(err)
			return
		}
		decoded = true
	}
	t.state = fetchDone
	resp := newResponse(t.resp, data)
	if decoded {
		resp.Headers = withoutEncodingHeaders(resp.Headers)
	}
	t.result.Resolve(resp, nil)
}

func (t *fetchTask) fail(err error) {
	t.state = fetchFailed
	t.result.Resolve(nil, t.translator.Translate(t.result.CancelReason(), err))
}

func (t *fetchTask) onTimer() {
	t.client.Logger.Info(
		"timerFired",
		slog.String("spanID", t.spanID),
		slog.Duration("timeout", t.req.Timeout),
		slog.Time("t", t.client.TimeNow()),
	)
	t.result.Cancel(CancelTimerFired)
}

// cancelCurrent cancels the operation of the current state.
func (t *fetchTask) cancelCurrent(reason CancelReason) {
	switch t.state {
	case fetchAwaitingHeaders:
		t.headers.Cancel(reason)
	case fetchStreamingBody:
		t.body.Operation().Cancel(reason)
	}
}

// abortTransport interrupts the transport goroutines.
func (t *fetchTask) abortTransport(reason CancelReason) {
	t.cancel(&CancelledError{Reason: reason})
	if t.resp != nil {
		go t.resp.Body.Close()
	}
}

// shutdown fails the task with [ErrLoopClosed] and stops its transport work.
func (t *fetchTask) shutdown() {
	if t.result.Resolve(nil, ErrLoopClosed) {
		t.cancelCurrent(CancelTransportError)
	}
}

// finish runs once the result is resolved.
func (t *fetchTask) finish(resp *Response, err error) {
	delete(t.client.live, t)
	if t.timer != nil && t.timer.Active() {
		t.timer.Cancel()
	}
	if err != nil {
		t.cancel(&CancelledError{Reason: CancelTransportError})
	} else {
		t.cancel(nil)
	}
	t.logDone(resp, err)
}

func (t *fetchTask) logStart() {
	t.client.Logger.Info(
		"fetchStart",
		slog.Duration("connectTimeout", t.req.ConnectTimeout),
		slog.Bool("decompressGzip", t.req.DecompressGzip),
		slog.Bool("disableConnectionReuse", t.req.DisableConnectionReuse),
		slog.String("httpMethod", t.req.Method),
		slog.String("httpUrl", t.req.URL),
		slog.String("spanID", t.spanID),
		slog.Time("t", t.t0),
		slog.Bool("tcpNoDelay", t.req.TCPNoDelay),
		slog.Duration("timeout", t.req.Timeout),
	)
}

func (t *fetchTask) logDone(resp *Response, err error) {
	var (
		statusCode int
		bodySize   int
	)
	if resp != nil {
		statusCode = resp.Code
		bodySize = len(resp.Body)
	}
	t.client.Logger.Info(
		"fetchDone",
		slog.String("cancelReason", t.result.CancelReason().String()),
		slog.Any("err", err),
		slog.String("errClass", t.client.ErrClassifier.Classify(err)),
		slog.String("httpMethod", t.req.Method),
		slog.Int("httpResponseBodySize", bodySize),
		slog.Int("httpResponseStatusCode", statusCode),
		slog.String("httpUrl", t.req.URL),
		slog.String("spanID", t.spanID),
		slog.Time("t0", t.t0),
		slog.Time("t", t.client.TimeNow()),
	)
}
