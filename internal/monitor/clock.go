package monitor

import "time"

// Clock is the time source of the poll loop. Tests swap in a fake to run
// without real delays.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}
