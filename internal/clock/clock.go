// Package clock provides an injectable time source.
//
// Components that read the time or schedule callbacks take a Clock instead
// of calling the time package directly. Production code uses Real(); tests
// use Fake(), whose AfterFunc callbacks run synchronously inside Advance so
// reconnect schedules and throttle windows can be driven deterministically.
package clock

import "time"

// Clock abstracts the time operations used by the sync core.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f after duration d. The returned Timer cancels the
	// pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. Returns true if the call
	// stopped the timer, false if it already fired or was stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
