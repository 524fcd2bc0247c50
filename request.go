// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"bytes"
	"time"
)

// FetchArgs contains the arguments of [*Client.Fetch].
type FetchArgs struct {
	// URL is the URL to fetch.
	URL string

	// Method is the HTTP method. The empty string means GET.
	Method string

	// Headers maps header names to a string, a []byte, a []string or a
	// [][]byte. The map is copied and never modified.
	Headers map[string]any

	// Body is the request body. It is copied.
	Body []byte

	// Timeout bounds the time to receive the complete response, starting
	// when the request is submitted. Zero means no bound.
	Timeout time.Duration

	// ConnectTimeout bounds the time to establish the connection. Zero
	// means no bound.
	ConnectTimeout time.Duration

	// TCPNoDelay disables small-packet coalescing on the sockets.
	TCPNoDelay bool

	// DisableConnectionReuse uses one connection per request.
	DisableConnectionReuse bool

	// DecompressGzip asks for and decompresses a gzip encoded body.
	DecompressGzip bool

	// UserAgent overrides [Config.UserAgent] for this request. It is
	// only used when Headers does not contain a User-Agent.
	UserAgent string
}

// Request is an immutable request built by [NewRequest].
type Request struct {
	Method                 string
	URL                    string
	Headers                map[string]any
	Body                   []byte
	Timeout                time.Duration
	ConnectTimeout         time.Duration
	TCPNoDelay             bool
	DisableConnectionReuse bool
	DecompressGzip         bool
}

// NewRequest builds a [*Request] from args, defaulting the method and
// adding a User-Agent header (args.UserAgent, or userAgent when empty)
// unless one is already present.
func NewRequest(args *FetchArgs, userAgent string) *Request {
	method := args.Method
	if method == "" {
		method = "GET"
	}
	headers := copyHeaders(args.Headers)
	if !hasHeader(headers, "User-Agent") {
		if args.UserAgent != "" {
			userAgent = args.UserAgent
		}
		headers["User-Agent"] = []string{userAgent}
	}
	return &Request{
		Method:                 method,
		URL:                    args.URL,
		Headers:                headers,
		Body:                   bytes.Clone(args.Body),
		Timeout:                args.Timeout,
		ConnectTimeout:         args.ConnectTimeout,
		TCPNoDelay:             args.TCPNoDelay,
		DisableConnectionReuse: args.DisableConnectionReuse,
		DecompressGzip:         args.DecompressGzip,
	}
}
