package engine

import (
	"sync"
	"time"
)

// timeouts tracks the timers a running trial registered through
// plugin.API.SetTimeout.
type timeouts struct {
	mu     sync.Mutex
	nextID uint64
	timers map[uint64]*time.Timer
}

func newTimeouts() *timeouts {
	return &timeouts{timers: make(map[uint64]*time.Timer)}
}

// set schedules fn after d. A timer that fires after clearAll has run is
// dropped, even if Stop lost the race with the timer goroutine.
func (t *timeouts) set(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.timers[id] = time.AfterFunc(d, func() {
		t.mu.Lock()
		_, live := t.timers[id]
		delete(t.timers, id)
		t.mu.Unlock()
		if live {
			fn()
		}
	})
}

// clearAll stops every pending timer.
func (t *timeouts) clearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// pending returns the number of timers that have neither fired nor been
// cleared.
func (t *timeouts) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
