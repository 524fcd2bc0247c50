// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DecodeGzip decompresses a gzip payload, failing with a
// [*GzipDecompressionError] when data is not valid gzip.
func DecodeGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &GzipDecompressionError{Err: err}
	}
	defer reader.Close()
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, &GzipDecompressionError{Err: err}
	}
	return out, nil
}

// addGzipAcceptEncoding returns a copy of the canonical headers where
// "gzip" is appended to Accept-Encoding, creating the header if needed.
func addGzipAcceptEncoding(headers http.Header) http.Header {
	out := headers.Clone()
	if out == nil {
		out = http.Header{}
	}
	out["Accept-Encoding"] = appendGzip(out["Accept-Encoding"])
	return out
}

func appendGzip(values []string) []string {
	if len(values) == 0 {
		return []string{"gzip"}
	}
	out := append([]string(nil), values...)
	last := len(out) - 1
	if strings.TrimSpace(out[last]) == "" {
		out[last] = "gzip"
		return out
	}
	out[last] += ", gzip"
	return out
}

// isGzipEncoded returns whether the response declares a gzip
// Content-Encoding.
func isGzipEncoded(headers http.Header) bool {
	for _, value := range headers.Values("Content-Encoding") {
		for token := range strings.SplitSeq(value, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "gzip") {
				return true
			}
		}
	}
	return false
}

// withoutEncodingHeaders returns a copy of the response headers without
// Content-Encoding and Content-Length, which describe the encoded body.
func withoutEncodingHeaders(headers http.Header) http.Header {
	out := headers.Clone()
	out.Del("Content-Encoding")
	out.Del("Content-Length")
	return out
}
