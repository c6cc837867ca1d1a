package turntimer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickFunc receives the remaining time of countdown id after each interval.
type TickFunc func(id uint64, remaining time.Duration)

// ExpireFunc is called once when countdown id reaches zero.
type ExpireFunc func(id uint64)

// Timer runs at most one countdown at a time.
//
// Callbacks run on the countdown's own goroutine without the timer lock held, so
// they may call back into whatever owns the timer. A countdown that is canceled or
// replaced never reaches onExpire; a callback that had already been claimed when
// Cancel or Reset ran still carries its id, which callers compare with Current to
// drop it.
type Timer struct {
	clock    clockwork.Clock
	interval time.Duration

	mu       sync.Mutex
	onTick   TickFunc
	onExpire ExpireFunc
	seq      uint64
	current  uint64 // 0 when idle
	deadline time.Time
	stop     chan struct{}
}

// New creates an idle timer that ticks every interval.
func New(clock clockwork.Clock, interval time.Duration) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{
		clock:    clock,
		interval: interval,
	}
}

// Start installs the callbacks and begins a countdown of duration d, replacing any
// countdown in flight. It returns the new countdown id.
func (t *Timer) Start(d time.Duration, onTick TickFunc, onExpire ExpireFunc) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.onTick = onTick
	t.onExpire = onExpire
	return t.startLocked(d)
}

// Reset restarts the countdown at d with the callbacks given to Start.
func (t *Timer) Reset(d time.Duration) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked(d)
}

// Cancel stops the active countdown. It is safe to call at any time.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Current returns the id of the active countdown, or 0 when idle.
func (t *Timer) Current() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Active reports whether a countdown is running.
func (t *Timer) Active() bool {
	return t.Current() != 0
}

// Remaining returns the time left on the active countdown.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == 0 {
		return 0
	}
	left := t.deadline.Sub(t.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

func (t *Timer) startLocked(d time.Duration) uint64 {
	t.stopLocked()

	t.seq++
	id := t.seq
	stop := make(chan struct{})

	t.current = id
	t.deadline = t.clock.Now().Add(d)
	t.stop = stop

	steps := int((d + t.interval - 1) / t.interval)
	if steps < 1 {
		steps = 1
	}

	// the ticker is created here, not in the goroutine, so fake clocks see it as
	// soon as Start/Reset returns
	ticker := t.clock.NewTicker(t.interval)
	go t.run(id, steps, ticker, stop, t.onTick, t.onExpire)

	return id
}

func (t *Timer) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.current = 0
	t.deadline = time.Time{}
}

func (t *Timer) run(id uint64, steps int, ticker clockwork.Ticker, stop <-chan struct{}, onTick TickFunc, onExpire ExpireFunc) {
	defer ticker.Stop()

	for left := steps - 1; ; left-- {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
		}

		if left <= 0 {
			if t.claim(id) && onExpire != nil {
				onExpire(id)
			}
			return
		}

		if t.isCurrent(id) && onTick != nil {
			onTick(id, time.Duration(left)*t.interval)
		}
	}
}

// claim marks countdown id finished if it is still the active one.
func (t *Timer) claim(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != id {
		return false
	}
	t.current = 0
	t.stop = nil
	t.deadline = time.Time{}
	return true
}

func (t *Timer) isCurrent(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current == id
}
