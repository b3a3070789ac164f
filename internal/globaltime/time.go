// Package globaltime is the process clock. Run timestamps and elapsed times
// read it so tests can pin time.
package globaltime

import (
	"sync/atomic"
	"time"
)

type clockFunc func() time.Time

var clock atomic.Pointer[clockFunc]

func Now() time.Time {
	if fn := clock.Load(); fn != nil {
		return (*fn)()
	}
	return time.Now()
}

func UTC() time.Time {
	return Now().UTC()
}

// Since reports the elapsed time from t using the package clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// Freeze pins the clock at t and returns a func that restores the previous
// clock.
func Freeze(t time.Time) (restore func()) {
	fixed := clockFunc(func() time.Time { return t })
	previous := clock.Swap(&fixed)
	return func() { clock.Store(previous) }
}
