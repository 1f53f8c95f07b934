package timeutil

import "time"

// Sleeper abstracts wall-clock waiting so components that pace themselves
// (rate limiting, backoff) can be driven by a fake clock in tests instead of
// blocking real goroutines.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper sleeps for real using time.Sleep.
type RealSleeper struct{}

func NewRealSleeper() RealSleeper {
	return RealSleeper{}
}

func (RealSleeper) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}
