// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gzipBytes compresses data.
func gzipBytes(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	_, err := writer.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestDecodeGzip(t *testing.T) {
	t.Run("valid data", func(t *testing.T) {
		want := bytes.Repeat([]byte("fido "), 1000)

		got, err := DecodeGzip(gzipBytes(t, want))

		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("corrupt data", func(t *testing.T) {
		data, err := DecodeGzip([]byte("definitely not gzip"))

		var gzErr *GzipDecompressionError
		require.ErrorAs(t, err, &gzErr)
		require.NotNil(t, gzErr.Err)
		assert.Nil(t, data)
	})

	t.Run("truncated data", func(t *testing.T) {
		full := gzipBytes(t, []byte("hello, world"))

		_, err := DecodeGzip(full[:len(full)-4])

		var gzErr *GzipDecompressionError
		require.ErrorAs(t, err, &gzErr)
	})
}

func TestAddGzipAcceptEncoding(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// in is the input headers.
		in http.Header

		// want is the expected output.
		want http.Header
	}{
		{
			name: "absent",
			in:   http.Header{},
			want: http.Header{"Accept-Encoding": {"gzip"}},
		},

		{
			name: "existing value",
			in:   http.Header{"Accept-Encoding": {"br"}, "Accept": {"*/*"}},
			want: http.Header{"Accept-Encoding": {"br, gzip"}, "Accept": {"*/*"}},
		},

		{
			name: "existing empty value",
			in:   http.Header{"Accept-Encoding": {""}},
			want: http.Header{"Accept-Encoding": {"gzip"}},
		},

		{
			name: "multiple values",
			in:   http.Header{"Accept-Encoding": {"br", "deflate"}},
			want: http.Header{"Accept-Encoding": {"br", "deflate, gzip"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.in.Clone()
			assert.Equal(t, tt.want, addGzipAcceptEncoding(tt.in))
			assert.Equal(t, before, tt.in)
		})
	}
}

func TestIsGzipEncoded(t *testing.T) {
	assert.True(t, isGzipEncoded(http.Header{"Content-Encoding": {"gzip"}}))
	assert.True(t, isGzipEncoded(http.Header{"Content-Encoding": {"identity, GZIP"}}))
	assert.False(t, isGzipEncoded(http.Header{"Content-Encoding": {"br"}}))
	assert.False(t, isGzipEncoded(http.Header{}))
}

func TestWithoutEncodingHeaders(t *testing.T) {
	in := http.Header{
		"Content-Encoding": {"gzip"},
		"Content-Length":   {"42"},
		"Content-Type":     {"text/plain"},
	}

	got := withoutEncodingHeaders(in)

	assert.Equal(t, http.Header{"Content-Type": {"text/plain"}}, got)
	assert.Len(t, in, 3)
}
