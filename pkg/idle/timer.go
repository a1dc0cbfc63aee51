// Package idle tracks device activity so a power policy can decide when the
// device has been quiet long enough to sleep.
package idle

import (
	"sync"
	"time"
)

// Activity is the view of the timer the interpreter needs: a capture in
// progress suspends the countdown, a completed one restarts it.
type Activity interface {
	Suspend()
	Update()
}

type Clock func() time.Time

func New(interval time.Duration) *Timer {
	return NewWithClock(interval, time.Now)
}

func NewWithClock(interval time.Duration, clock Clock) *Timer {
	return &Timer{interval: interval, now: clock}
}

// Timer counts down from the last Update. While suspended it never times out.
type Timer struct {
	l        sync.Mutex
	now      Clock
	interval time.Duration

	updated   time.Time
	suspended time.Time
	updates   uint64
}

func (t *Timer) Interval() time.Duration {
	t.l.Lock()
	defer t.l.Unlock()
	return t.interval
}

// Start restarts the countdown, optionally replacing the interval.
func (t *Timer) Start(interval time.Duration) {
	t.l.Lock()
	defer t.l.Unlock()
	if interval != 0 {
		t.interval = interval
	}
	t.update()
}

func (t *Timer) Suspend() {
	t.l.Lock()
	defer t.l.Unlock()
	t.suspended = t.now()
}

// Resume continues the countdown, crediting the time spent suspended.
func (t *Timer) Resume() {
	t.l.Lock()
	defer t.l.Unlock()
	if t.suspended.IsZero() {
		return
	}
	t.updated = t.updated.Add(t.now().Sub(t.suspended))
	t.suspended = time.Time{}
}

func (t *Timer) Reset() {
	t.l.Lock()
	defer t.l.Unlock()
	t.updated, t.suspended, t.updates = time.Time{}, time.Time{}, 0
}

func (t *Timer) Update() {
	t.l.Lock()
	defer t.l.Unlock()
	t.update()
}

func (t *Timer) update() {
	t.updated = t.now()
	t.updates++
	t.suspended = time.Time{}
}

// Working reports whether the timer has been started since the last Reset.
func (t *Timer) Working() bool {
	t.l.Lock()
	defer t.l.Unlock()
	return !t.updated.IsZero() && t.updates != 0
}

func (t *Timer) TimedOut() bool {
	t.l.Lock()
	defer t.l.Unlock()
	return t.timedOut()
}

func (t *Timer) timedOut() bool {
	if !t.suspended.IsZero() {
		return false
	}
	return !t.now().Before(t.updated.Add(t.interval))
}

func (t *Timer) Active() bool {
	t.l.Lock()
	defer t.l.Unlock()
	return !t.updated.IsZero() && !t.timedOut()
}

// Next restarts the countdown if it has expired and reports whether it did.
func (t *Timer) Next() bool {
	t.l.Lock()
	defer t.l.Unlock()
	if !t.timedOut() {
		return false
	}
	t.update()
	return true
}

func (t *Timer) Updates() uint64 {
	t.l.Lock()
	defer t.l.Unlock()
	return t.updates
}

func (t *Timer) Suspended() bool {
	t.l.Lock()
	defer t.l.Unlock()
	return !t.suspended.IsZero()
}

// LastActivity is the time of the last Update, zero before Start.
func (t *Timer) LastActivity() time.Time {
	t.l.Lock()
	defer t.l.Unlock()
	return t.updated
}

// Remaining is the time left before the timer expires, zero once expired or
// while suspended.
func (t *Timer) Remaining() time.Duration {
	t.l.Lock()
	defer t.l.Unlock()
	if !t.suspended.IsZero() {
		return 0
	}
	if d := t.updated.Add(t.interval).Sub(t.now()); d > 0 {
		return d
	}
	return 0
}
