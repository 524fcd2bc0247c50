// SPDX-License-Identifier: GPL-3.0-or-later

// Package fido is an HTTP client exposing blocking futures to any number
// of goroutines while running every orchestration step on one event loop.
//
// # Usage
//
//	client := fido.NewClient(fido.NewConfig(), fido.DefaultSLogger())
//	defer client.Close()
//	fut, err := client.Fetch(&fido.FetchArgs{
//		URL:            "https://example.com/",
//		Timeout:        5 * time.Second,
//		ConnectTimeout: time.Second,
//	})
//	if err != nil {
//		// one-time setup failed
//	}
//	resp, err := fut.Wait(0)
//
// [*Client.Fetch] never waits for the network. The returned [*Future] is
// resolved exactly once with a [*Response] or an error. [*Client.Close]
// fails the requests still in flight with [ErrLoopClosed].
//
// # Event Loop
//
// A [Scheduler] runs non-blocking work on a single goroutine. Per-request
// state (the [*Operation] values, the response [Timer], the
// [*BodyAccumulator]) is only touched there. Blocking I/O runs on transport
// goroutines, which post their results back to the loop in order, so the
// response headers are always processed before the body.
//
// # Timeouts
//
// The connect timeout bounds establishing the connection, including the
// TLS handshake, and its expiry fails the request with a
// [*TCPConnectionError]. The timeout bounds receiving the whole response,
// starting when the request is submitted, and its expiry fails the
// request with a [*HTTPTimeoutError]. Both match [ErrTimeout] via
// [errors.Is]. The two are told apart by the [CancelReason] of the
// request, never by timing.
//
// Cancellation is cooperative: the [*Future] fails immediately, while the
// transport goroutines stop at their next blocking operation.
//
// # Agents
//
// By default, connections are pooled per distinct [AgentOptions]. Setting
// DisableConnectionReuse uses a fresh connection per request, closed with
// the response. When http_proxy (or HTTP_PROXY) is set, every request goes
// through that proxy.
//
// Connections are built by composing [Func] stages with [Compose2] and
// friends: [ConnectFunc], [ObserveConnFunc], [TLSHandshakeFunc],
// [CancelWatchFunc] and [HTTPConnFunc].
//
// # Observability
//
// All components emit structured events through an [SLogger] (compatible
// with [log/slog]); by default, logging is disabled. Span events come in
// *Start/*Done pairs (e.g., fetchStart/fetchDone sharing a spanID from
// [NewSpanID]); completion events include t0, err and errClass. I/O-level
// events (read, write, deadline changes) use [slog.LevelDebug]; all other
// events use [slog.LevelInfo].
package fido
