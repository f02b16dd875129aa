package service

import "time"

// Clock provides time operations. This interface enables deterministic testing.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// StepClock advances by Step on every call, starting at Start.
type StepClock struct {
	Start time.Time
	Step  time.Duration

	calls int64
}

// Now returns Start plus Step times the number of earlier calls.
func (c *StepClock) Now() time.Time {
	t := c.Start.Add(time.Duration(c.calls) * c.Step)
	c.calls++
	return t
}
