package engine

import "sync/atomic"

// Clock hands out the sequence numbers stamped on trial records.
//
// Records are ordered by seq, never by wall-clock time: two trials finishing
// within the same millisecond still sort in completion order, and a replayed
// run with the same seed reproduces the same numbering.
//
// Clock is safe for concurrent use, though only the run goroutine advances it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start. Used to continue numbering
// after records already written for a run.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Reset rewinds the clock to zero at the start of a run.
func (c *Clock) Reset() {
	c.seq.Store(0)
}
