// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Future is the cross-goroutine handle to the eventual result of work
// scheduled with [RunInLoop].
//
// The result slot is written exactly once, from the [Scheduler]
// goroutine, and read by any number of waiting goroutines.
type Future[T any] struct {
	done  chan struct{}
	err   error
	once  sync.Once
	sched Scheduler
	value T

	// owned by the scheduler goroutine
	cancelRequested bool
	op              *Operation[T]
}

func newFuture[T any](sched Scheduler) *Future[T] {
	return &Future[T]{done: make(chan struct{}), sched: sched}
}

// RunInLoop schedules fn on the [Scheduler] goroutine and returns
// immediately with a [*Future] bound to the [*Operation] fn returns.
//
// An error returned by fn, or a panic raised by it, fails the future.
// If the scheduler does not accept work, the future fails with
// [ErrLoopClosed].
func RunInLoop[T any](sched Scheduler, fn func() (*Operation[T], error)) *Future[T] {
	fut := newFuture[T](sched)
	posted := sched.Post(func() {
		op, err := callInLoop(fn)
		if err != nil {
			var zero T
			fut.set(zero, err)
			return
		}
		fut.op = op
		op.OnDone(fut.set)
		if fut.cancelRequested {
			op.Cancel(CancelCallerCancelled)
		}
	})
	if !posted {
		var zero T
		fut.set(zero, ErrLoopClosed)
	}
	return fut
}

func callInLoop[T any](fn func() (*Operation[T], error)) (op *Operation[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			op, err = nil, fmt.Errorf("fido: panic in event loop: %v", r)
		}
	}()
	return fn()
}

func (f *Future[T]) set(value T, err error) {
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
	})
}

// Done returns a channel closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available and returns it.
//
// A positive timeout bounds the wait: on expiry Wait returns
// [ErrWaitTimeout] and the underlying operation keeps running. A zero
// or negative timeout waits forever.
func (f *Future[T]) Wait(timeout time.Duration) (T, error) {
	if timeout <= 0 {
		<-f.done
		return f.value, f.err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.done:
		return f.value, f.err
	case <-timer.C:
		var zero T
		return zero, ErrWaitTimeout
	}
}

// WaitContext is like [*Future.Wait] but bounded by ctx. When ctx is
// done first, it returns the context error.
func (f *Future[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OriginalFailure returns the failure if the future has already failed
// and nil otherwise, without blocking.
func (f *Future[T]) OriginalFailure() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Cancel asks the scheduled operation to stop with reason
// [CancelCallerCancelled]. Cancellation is cooperative: the future fails
// once the operation observes it, and has no effect on a completed future.
func (f *Future[T]) Cancel() {
	f.sched.Post(func() {
		f.cancelRequested = true
		if f.op != nil {
			f.op.Cancel(CancelCallerCancelled)
		}
	})
}
