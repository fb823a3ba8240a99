package sampler

import "time"

// SampleClock schedules sample N for Start + N*Period rather than
// "now + Period" after each sample, so jitter in any one sample (a slow
// read, a GC pause in this process) doesn't compound into permanent
// drift away from the requested rate.
type SampleClock struct {
	Start  time.Time
	Period time.Duration
}

// NthSample returns the time sample n is due.
func (c SampleClock) NthSample(n uint64) time.Time {
	return c.Start.Add(time.Duration(n) * c.Period)
}

// SleepUntil blocks until sample n is due, returning immediately (no
// sleep) if it's already past due — a slow sample eats into its own
// slack, not the next one's. The returned late is true when sample n
// was already overdue at call time, i.e. no sleep happened.
func (c SampleClock) SleepUntil(n uint64) (late bool) {
	d := time.Until(c.NthSample(n))
	if d > 0 {
		time.Sleep(d)
		return false
	}
	return true
}
