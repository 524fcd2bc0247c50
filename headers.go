// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"bytes"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"
)

// EncodeToBytes returns the byte form of a string or []byte value.
//
// Strings must be valid UTF-8. Any other type is an error.
func EncodeToBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		if !utf8.ValidString(v) {
			return nil, fmt.Errorf("fido: invalid UTF-8 string: %q", v)
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("fido: cannot encode %T to bytes", value)
	}
}

// ListifyHeaders normalizes caller-supplied headers to list form.
//
// Keys are canonicalized with [http.CanonicalHeaderKey] and the values
// of keys differing only in case are merged in sorted key order. A bare
// string or []byte value becomes a one-element list. For []string and
// [][]byte values every element is normalized. The input map is never
// modified.
func ListifyHeaders(headers map[string]any) (http.Header, error) {
	out := make(http.Header, len(headers))
	for _, key := range slices.Sorted(maps.Keys(headers)) {
		value := headers[key]
		var values []any
		switch v := value.(type) {
		case []string:
			for _, e := range v {
				values = append(values, e)
			}
		case [][]byte:
			for _, e := range v {
				values = append(values, e)
			}
		default:
			values = []any{v}
		}
		list := make([]string, 0, len(values))
		for _, e := range values {
			data, err := EncodeToBytes(e)
			if err != nil {
				return nil, fmt.Errorf("fido: header %q: %w", key, err)
			}
			list = append(list, string(data))
		}
		canonical := http.CanonicalHeaderKey(key)
		out[canonical] = append(out[canonical], list...)
	}
	return out, nil
}

// hasHeader returns whether any key in headers matches name
// case-insensitively.
func hasHeader[V any](headers map[string]V, name string) bool {
	for key := range headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// copyHeaders returns a copy of headers with list and []byte values
// cloned, so that later edits of the caller's data are not observed.
func copyHeaders(headers map[string]any) map[string]any {
	out := make(map[string]any, len(headers))
	for key, value := range headers {
		switch v := value.(type) {
		case []string:
			out[key] = append([]string(nil), v...)
		case [][]byte:
			list := make([][]byte, 0, len(v))
			for _, e := range v {
				list = append(list, bytes.Clone(e))
			}
			out[key] = list
		case []byte:
			out[key] = bytes.Clone(v)
		default:
			out[key] = v
		}
	}
	return out
}

// withoutContentLength returns a copy of the canonical headers without
// the Content-Length key.
func withoutContentLength(headers http.Header) http.Header {
	out := headers.Clone()
	out.Del("Content-Length")
	return out
}
