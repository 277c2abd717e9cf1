package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/timeline"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventRunStarted is published once the root timeline is built.
	EventRunStarted EventType = iota + 1
	// EventTrialStarted is published when a trial's parameters are resolved.
	EventTrialStarted
	// EventTrialFinished is published after a trial's on_finish callback.
	EventTrialFinished
	// EventWarning carries an advisory warning.
	EventWarning
	// EventRunFinished is the last event of a run.
	EventRunFinished
)

func (t EventType) String() string {
	switch t {
	case EventRunStarted:
		return "run_started"
	case EventTrialStarted:
		return "trial_started"
	case EventTrialFinished:
		return "trial_finished"
	case EventWarning:
		return "warning"
	case EventRunFinished:
		return "run_finished"
	default:
		return "unknown"
	}
}

// Event describes one step of a run as seen from outside the engine.
type Event struct {
	Type       EventType
	RunID      string
	TrialIndex int
	TrialType  string

	// Record is set for EventTrialFinished when the trial recorded data.
	Record data.Record

	// Warning is set for EventWarning.
	Warning *timeline.Warning

	// Status is set for EventRunFinished.
	Status string
}

// ErrSubscriptionClosed is returned by Next once the subscription is closed
// and every buffered event has been delivered.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription is a FIFO of engine events.
//
// The buffer is unbounded so the run goroutine never blocks on a slow reader.
// Safe for one reader and any number of publishers.
type Subscription struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1

	onClose func(*Subscription)
}

func newSubscription(onClose func(*Subscription)) *Subscription {
	return &Subscription{
		events:  make([]Event, 0, 16),
		signal:  make(chan struct{}, 1),
		onClose: onClose,
	}
}

// publish appends an event. Returns false if the subscription is closed.
func (s *Subscription) publish(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.events = append(s.events, ev)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

// TryNext returns the oldest buffered event without blocking.
func (s *Subscription) TryNext() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		return Event{}, false
	}
	ev := s.events[0]

	// Release the record held by the slot.
	s.events[0] = Event{}
	if len(s.events) == 1 {
		s.events = s.events[:0]
	} else {
		s.events = s.events[1:]
	}
	return ev, true
}

// Next blocks until an event is available, the subscription is closed and
// drained, or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		if ev, ok := s.TryNext(); ok {
			return ev, nil
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Event{}, ErrSubscriptionClosed
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.signal:
		}
	}
}

// Len returns the number of buffered events.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Close stops delivery. Events already buffered can still be read.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.signal)
	s.mu.Unlock()

	if s.onClose != nil {
		s.onClose(s)
	}
}
