package domain

import "time"

// Clock abstracts wall-clock reads so time-gated behavior (auction end) can
// be tested deterministically. There are no timers anywhere in the core;
// time is only ever compared lazily inside an operation.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }
