package kv

import (
	"math"
	"time"
)

// Timestamp converts the time into milliseconds since the unix epoch.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixMilli()) + float64(t.Nanosecond()%int(time.Millisecond))/float64(time.Millisecond)
}

// Time converts milliseconds since the unix epoch into a time.
func Time(timestamp float64) time.Time {
	milliseconds := math.Floor(timestamp)
	fraction := time.Duration((timestamp - milliseconds) * float64(time.Millisecond))
	return time.UnixMilli(int64(milliseconds)).Add(fraction)
}

// monotonicClock returns strictly increasing timestamps, even when the wall clock stands still or goes backward.
// Access needs to be synchronized externally.
type monotonicClock struct {
	now  func() time.Time
	last float64
}

// Current returns the current timestamp without reserving it. It is never less than the last reserved timestamp.
func (c *monotonicClock) Current() float64 {
	return max(Timestamp(c.now()), c.last)
}

// Next reserves and returns a timestamp greater than every timestamp reserved before.
func (c *monotonicClock) Next() float64 {
	next := Timestamp(c.now())
	if next <= c.last {
		next = math.Nextafter(c.last, math.Inf(1))
	}
	c.last = next
	return next
}
