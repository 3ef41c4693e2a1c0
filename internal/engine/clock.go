package engine

import "sync/atomic"

// Clock hands out arrival sequence numbers for accepted files.
//
// Every intake is stamped with a strictly increasing seq, so the order in
// which files arrived survives concurrent batch ingestion and ties in the
// wall-clock timestamp. The clock resumes from the highest seq already
// stored.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock resuming after start; its first value is
// start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
