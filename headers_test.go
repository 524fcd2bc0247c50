// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeToBytes(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// value is the input value.
		value any

		// want is the expected output.
		want []byte

		// wantErr indicates whether we expect an error.
		wantErr bool
	}{
		{name: "string", value: "héllo", want: []byte("héllo")},
		{name: "bytes", value: []byte{0xff, 0x00}, want: []byte{0xff, 0x00}},
		{name: "invalid UTF-8 string", value: string([]byte{0xff}), wantErr: true},
		{name: "unsupported type", value: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeToBytes(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListifyHeaders(t *testing.T) {
	t.Run("normalizes every shape", func(t *testing.T) {
		in := map[string]any{
			"x-single":     "a",
			"X-Bytes":      []byte("b"),
			"X-List":       []string{"c", "d"},
			"X-Bytes-List": [][]byte{[]byte("e"), []byte("f")},
		}

		got, err := ListifyHeaders(in)

		require.NoError(t, err)
		assert.Equal(t, http.Header{
			"X-Single":     {"a"},
			"X-Bytes":      {"b"},
			"X-List":       {"c", "d"},
			"X-Bytes-List": {"e", "f"},
		}, got)
		assert.Equal(t, "a", in["x-single"])
	})

	t.Run("merges keys differing in case", func(t *testing.T) {
		got, err := ListifyHeaders(map[string]any{
			"user-agent": "b",
			"User-Agent": []string{"a"},
			"USER-AGENT": [][]byte{[]byte("c")},
		})

		require.NoError(t, err)
		assert.Equal(t, http.Header{"User-Agent": {"c", "a", "b"}}, got)
	})

	t.Run("rejects invalid elements", func(t *testing.T) {
		_, err := ListifyHeaders(map[string]any{"X-Bad": []string{"ok", string([]byte{0xfe})}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "X-Bad")
	})
}

func TestWithoutContentLength(t *testing.T) {
	in := http.Header{"Content-Length": {"11"}, "Accept": {"*/*"}}

	got := withoutContentLength(in)

	assert.Equal(t, http.Header{"Accept": {"*/*"}}, got)
	assert.Len(t, in, 2)
}

func TestNewRequest(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		req := NewRequest(&FetchArgs{URL: "http://example.com/"}, "fido/test")

		assert.Equal(t, "GET", req.Method)
		assert.Equal(t, map[string]any{"User-Agent": []string{"fido/test"}}, req.Headers)
		assert.Nil(t, req.Body)
	})

	t.Run("per-request User-Agent", func(t *testing.T) {
		req := NewRequest(&FetchArgs{URL: "http://example.com/", UserAgent: "custom/1"}, "fido/test")
		assert.Equal(t, []string{"custom/1"}, req.Headers["User-Agent"])
	})

	t.Run("existing User-Agent matched case-insensitively", func(t *testing.T) {
		args := &FetchArgs{
			URL:     "http://example.com/",
			Headers: map[string]any{"user-agent": "mine"},
		}

		req := NewRequest(args, "fido/test")

		assert.Equal(t, map[string]any{"user-agent": "mine"}, req.Headers)
	})

	t.Run("copies the caller data", func(t *testing.T) {
		list := []string{"a"}
		raw := []byte("raw")
		rawList := [][]byte{[]byte("x")}
		body := []byte("body")
		args := &FetchArgs{
			URL:            "http://example.com/",
			Method:         "POST",
			Headers:        map[string]any{"X-List": list, "X-Raw": raw, "X-Raw-List": rawList},
			Body:           body,
			Timeout:        time.Second,
			ConnectTimeout: time.Millisecond,
			TCPNoDelay:     true,
			DecompressGzip: true,
		}

		req := NewRequest(args, "fido/test")
		list[0] = "changed"
		raw[0] = 'R'
		rawList[0][0] = 'X'
		body[0] = 'B'

		assert.Equal(t, []string{"a"}, req.Headers["X-List"])
		assert.Equal(t, []byte("raw"), req.Headers["X-Raw"])
		assert.Equal(t, [][]byte{[]byte("x")}, req.Headers["X-Raw-List"])
		assert.Equal(t, "body", string(req.Body))
		assert.Len(t, args.Headers, 3)
		assert.Equal(t, "POST", req.Method)
		assert.Equal(t, time.Second, req.Timeout)
		assert.Equal(t, time.Millisecond, req.ConnectTimeout)
		assert.True(t, req.TCPNoDelay)
		assert.True(t, req.DecompressGzip)
	})
}

func TestResponse(t *testing.T) {
	resp := newResponse(&http.Response{
		StatusCode: 201,
		Status:     "201 Created Just Now",
		Header:     http.Header{"Content-Type": {"application/json"}},
	}, []byte(`{"name": "fido", "tags": [1, 2]}`))

	assert.Equal(t, 201, resp.Code)
	assert.Equal(t, "Created Just Now", resp.Reason)

	var decoded struct {
		Name string `json:"name"`
		Tags []int  `json:"tags"`
	}
	require.NoError(t, resp.JSON(&decoded))
	assert.Equal(t, "fido", decoded.Name)
	assert.Equal(t, []int{1, 2}, decoded.Tags)

	resp.Body = []byte("{not json")
	assert.Error(t, resp.JSON(&decoded))

	bare := newResponse(&http.Response{StatusCode: 404}, nil)
	assert.Equal(t, "Not Found", bare.Reason)
}
