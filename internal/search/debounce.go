package search

import (
	"sync"
	"time"
)

// Debouncer coalesces a burst of calls into a single trailing invocation.
//
// WHY DEBOUNCE?
// A search-as-you-type box fires on every keystroke. Typing "dune" would
// hit the books API four times ("d", "du", "dun", "dune") and three of
// those responses are useless. Debouncing waits for a quiet gap before
// firing, so only the final query goes out.
//
// HOW IT WORKS:
// Each Do call stops the previously scheduled timer (if it hasn't fired
// yet) and schedules fn after the wait interval. Only the last fn in a
// burst survives. The zero value is not usable — use NewDebouncer.
type Debouncer struct {
	mu    sync.Mutex
	wait  time.Duration
	timer *time.Timer
}

// NewDebouncer creates a Debouncer with the given quiet interval.
func NewDebouncer(wait time.Duration) *Debouncer {
	return &Debouncer{wait: wait}
}

// Do schedules fn to run after the quiet interval, cancelling any
// previously scheduled call. fn runs on a timer goroutine, so it must do
// its own locking if it touches shared state.
func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		// Stop returns false if the timer already fired — that's fine,
		// the previous fn either ran or is running; we just schedule the next.
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, fn)
}

// Stop cancels any pending invocation. Call it when the owner shuts down
// so no stray fn fires afterwards.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
