// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"slices"
)

// BodyEndReason tells how the delivery of a response body ended.
type BodyEndReason int

const (
	// BodyComplete means all the bytes were delivered.
	BodyComplete BodyEndReason = iota

	// BodyPotentialDataLoss means the body ended with the connection
	// and the response had no length framing, so completeness cannot
	// be verified. This is treated as success.
	BodyPotentialDataLoss

	// BodyDataLoss means some bytes were lost mid-stream.
	BodyDataLoss
)

// BodyAccumulator buffers a response body delivered in chunks.
//
// All methods must be called from the [Scheduler] goroutine.
type BodyAccumulator struct {
	buf bytes.Buffer
	op  *Operation[[]byte]
}

// NewBodyAccumulator returns an empty [*BodyAccumulator]. The canceller
// is used by the [*Operation] returned by [*BodyAccumulator.Operation].
func NewBodyAccumulator(canceller func(CancelReason)) *BodyAccumulator {
	return &BodyAccumulator{op: NewOperation[[]byte](canceller)}
}

// Operation returns the [*Operation] resolved by [*BodyAccumulator.Completed].
func (a *BodyAccumulator) Operation() *Operation[[]byte] {
	return a.op
}

// Data appends a chunk. Chunks arriving after completion are ignored.
func (a *BodyAccumulator) Data(chunk []byte) {
	if !a.op.Done() {
		a.buf.Write(chunk)
	}
}

// Completed resolves the operation according to reason. For
// [BodyDataLoss], err is the read error and the operation fails with
// a [*ResponseFailedError].
func (a *BodyAccumulator) Completed(reason BodyEndReason, err error) {
	switch reason {
	case BodyComplete, BodyPotentialDataLoss:
		a.op.Resolve(a.buf.Bytes(), nil)
	default:
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		a.op.Resolve(nil, &ResponseFailedError{Err: err})
	}
}

// bodyChunkSize is the size of the buffer used by [streamBody].
const bodyChunkSize = 32 << 10

// streamBody reads resp.Body until EOF or error, posting each chunk and
// then the completion to sink on the [Scheduler] goroutine. It runs on a
// transport goroutine and closes the body when done.
func streamBody(sched Scheduler, resp *http.Response, sink *BodyAccumulator) {
	defer resp.Body.Close()
	buf := make([]byte, bodyChunkSize)
	for {
		count, err := resp.Body.Read(buf)
		if count > 0 {
			chunk := slices.Clone(buf[:count])
			if !sched.Post(func() { sink.Data(chunk) }) {
				return
			}
		}
		if err == nil {
			continue
		}
		reason := bodyEndReason(resp, err)
		sched.Post(func() { sink.Completed(reason, err) })
		return
	}
}

// bodyEndReason classifies the error that ended a body read.
func bodyEndReason(resp *http.Response, err error) BodyEndReason {
	if !errors.Is(err, io.EOF) {
		return BodyDataLoss
	}
	if hasLengthFraming(resp) {
		return BodyComplete
	}
	return BodyPotentialDataLoss
}

// hasLengthFraming returns whether the body length is known from the
// message framing: a Content-Length, chunked encoding or HTTP/2 frames.
func hasLengthFraming(resp *http.Response) bool {
	return resp.ContentLength >= 0 ||
		slices.Contains(resp.TransferEncoding, "chunked") ||
		resp.ProtoMajor >= 2
}
