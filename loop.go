// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs non-blocking work on a single cooperative goroutine.
//
// Every per-request state (operations, timers, body buffers) is only
// touched from work scheduled here, so it needs no locking.
type Scheduler interface {
	// Start starts the scheduler. Only the first call has an effect;
	// later calls return the same result.
	Start() error

	// Post schedules fn to run on the scheduler goroutine in FIFO
	// order. It is safe to call from any goroutine and returns false
	// when the scheduler no longer accepts work.
	Post(fn func()) bool

	// CallLater schedules fn to run on the scheduler goroutine after d.
	CallLater(d time.Duration, fn func()) Timer
}

// Timer is a delayed call created by [Scheduler.CallLater].
//
// Its methods must only be called from the scheduler goroutine.
type Timer interface {
	// Active returns whether the timer has neither fired nor been cancelled.
	Active() bool

	// Cancel prevents the timer from firing. Cancelling an inactive
	// timer is a no-op.
	Cancel()
}

// Loop is the production [Scheduler]: one goroutine draining an
// unbounded FIFO queue of functions.
//
// Construct using [NewLoop]. The goroutine is started by the first
// [*Loop.Start] call and stopped by [*Loop.Close].
type Loop struct {
	// Logger is the [SLogger] to use.
	//
	// Set by [NewLoop] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time.
	//
	// Set by [NewLoop] from [Config.TimeNow].
	TimeNow func() time.Time

	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	queue   []func()
	started bool
	wakeup  chan struct{}
}

// NewLoop returns a new, not yet started, [*Loop].
func NewLoop(cfg *Config, logger SLogger) *Loop {
	return &Loop{
		Logger:  logger,
		TimeNow: cfg.TimeNow,
		done:    make(chan struct{}),
		wakeup:  make(chan struct{}, 1),
	}
}

var _ Scheduler = &Loop{}

// Start implements [Scheduler].
//
// It returns [ErrLoopClosed] after [*Loop.Close].
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLoopClosed
	}
	if !l.started {
		l.started = true
		l.Logger.Info("loopStart", slog.Time("t", l.TimeNow()))
		go l.run()
	}
	return nil
}

// Post implements [Scheduler].
//
// Work posted before [*Loop.Start] runs once the loop starts.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
	return true
}

// CallLater implements [Scheduler].
func (l *Loop) CallLater(d time.Duration, fn func()) Timer {
	lt := &loopTimer{active: true}
	lt.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.active {
				lt.active = false
				fn()
			}
		})
	})
	return lt
}

// Close stops accepting work, runs the work already queued and waits
// for the loop goroutine to exit. It is safe to call more than once.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return nil
	}
	l.closed = true
	started := l.started
	l.mu.Unlock()
	if !started {
		close(l.done)
		return nil
	}
	l.signal()
	<-l.done
	return nil
}

func (l *Loop) signal() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer func() {
		l.Logger.Info("loopDone", slog.Time("t", l.TimeNow()))
		close(l.done)
	}()
	for {
		l.mu.Lock()
		batch, closed := l.queue, l.closed
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wakeup
	}
}

// loopTimer implements [Timer] for [*Loop].
//
// The active flag is only accessed from the loop goroutine.
type loopTimer struct {
	active bool
	timer  *time.Timer
}

// Active implements [Timer].
func (lt *loopTimer) Active() bool {
	return lt.active
}

// Cancel implements [Timer].
func (lt *loopTimer) Cancel() {
	if lt.active {
		lt.active = false
		lt.timer.Stop()
	}
}
