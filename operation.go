// SPDX-License-Identifier: GPL-3.0-or-later

package fido

// Operation is a single-shot asynchronous result living on the event loop.
//
// An Operation is resolved exactly once, either with a value or with an
// error; later resolutions are ignored. Callbacks registered with
// [*Operation.OnDone] run in registration order when the operation
// resolves, or immediately if it already resolved.
//
// All methods must be called from the [Scheduler] goroutine.
type Operation[T any] struct {
	callbacks []func(T, error)
	canceller func(CancelReason)
	done      bool
	err       error
	reason    CancelReason
	value     T
}

// NewOperation returns a pending [*Operation].
//
// The canceller, if not nil, is invoked by [*Operation.Cancel] to abort
// the work producing the result. It may resolve the operation itself.
func NewOperation[T any](canceller func(CancelReason)) *Operation[T] {
	return &Operation[T]{canceller: canceller}
}

// Resolve delivers the result. It returns false if the operation had
// already been resolved, in which case value and err are discarded.
func (op *Operation[T]) Resolve(value T, err error) bool {
	if op.done {
		return false
	}
	op.done = true
	op.value, op.err = value, err
	callbacks := op.callbacks
	op.callbacks = nil
	for _, fn := range callbacks {
		fn(value, err)
	}
	return true
}

// OnDone registers fn to be called with the result.
func (op *Operation[T]) OnDone(fn func(T, error)) {
	if op.done {
		fn(op.value, op.err)
		return
	}
	op.callbacks = append(op.callbacks, fn)
}

// Done returns whether the operation has been resolved.
func (op *Operation[T]) Done() bool {
	return op.done
}

// Cancel requests cancellation for the given reason.
//
// The canceller runs first; if it does not resolve the operation, the
// operation is resolved with a [*CancelledError] carrying reason. The
// work behind the operation stops cooperatively, at its next suspension
// point. Cancelling a resolved or already cancelled operation is a no-op.
func (op *Operation[T]) Cancel(reason CancelReason) {
	if op.done || op.reason != CancelNone {
		return
	}
	op.reason = reason
	if op.canceller != nil {
		op.canceller(reason)
	}
	if !op.done {
		var zero T
		op.Resolve(zero, &CancelledError{Reason: reason})
	}
}

// CancelReason returns the reason passed to the first effective
// [*Operation.Cancel] call, or [CancelNone].
func (op *Operation[T]) CancelReason() CancelReason {
	return op.reason
}
