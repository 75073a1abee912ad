// Package debounce collapses bursts of calls into a single delayed call.
//
// A Debouncer runs its action once the configured delay has passed without
// another Call, using the argument of the most recent Call. Calls never
// block and never run the action on the caller's goroutine.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delays an action until calls have been quiet for a while
type Debouncer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	action  func(T)
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// New returns a debouncer that runs action delay after the last Call.
// A negative delay is treated as zero.
func New[T any](delay time.Duration, action func(T)) *Debouncer[T] {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer[T]{
		delay:  delay,
		action: action,
	}
}

// Call cancels any scheduled execution and schedules action(arg) after the delay.
// Calls after Stop are ignored.
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.cancelLocked()
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(seq, arg)
	})
}

// Cancel drops the scheduled execution, if any. The debouncer stays usable.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelLocked()
}

// Stop cancels the scheduled execution and disables the debouncer.
// It is safe to call more than once.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelLocked()
	d.stopped = true
}

// Pending reports whether an execution is scheduled
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.timer != nil
}

// cancelLocked stops the timer and invalidates its sequence number, so a
// timer that already fired but has not yet taken the lock becomes a no-op.
func (d *Debouncer[T]) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

func (d *Debouncer[T]) fire(seq uint64, arg T) {
	d.mu.Lock()
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.action(arg)
}
