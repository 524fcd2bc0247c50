// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// Response is a complete HTTP response.
type Response struct {
	// Code is the status code.
	Code int

	// Headers are the response headers.
	Headers http.Header

	// Body is the whole response body.
	Body []byte

	// Reason is the reason phrase (e.g., "OK").
	Reason string
}

func newResponse(resp *http.Response, body []byte) *Response {
	return &Response{
		Code:    resp.StatusCode,
		Headers: resp.Header,
		Body:    body,
		Reason:  reasonPhrase(resp),
	}
}

// reasonPhrase extracts the reason phrase from the status line, which
// [net/http] stores as "200 OK".
func reasonPhrase(resp *http.Response) string {
	if _, reason, found := strings.Cut(resp.Status, " "); found {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}

// JSON decodes the body as JSON into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}
