package motortest

import "time"

// Clock is the tick source for deadlines and pacing delays.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock uses the monotonic wall clock.
var SystemClock Clock = systemClock{}
