package motortest

import "time"

type Outcome uint8

const (
	Arrived Outcome = iota
	TimedOut
)

func (o Outcome) String() string {
	if o == Arrived {
		return "arrived"
	}
	return "timed out"
}

// waitFor polls cond every interval until it holds, or until more than timeout has
// elapsed since start. It reports whether cond held.
func waitFor(clock Clock, start time.Time, timeout, interval time.Duration, cond func() bool) bool {
	for !cond() {
		if clock.Now().Sub(start) > timeout {
			return false
		}
		clock.Sleep(interval)
	}
	return true
}

// awaitResponse waits for the inbox flag. The caller must already have reset the inbox
// and sent exactly one command.
func (h *Tester) awaitResponse(start time.Time, timeout time.Duration) Outcome {
	if waitFor(h.Clock, start, timeout, POLL_INTERVAL, h.transport.Inbox().Arrived) {
		return Arrived
	}
	return TimedOut
}
