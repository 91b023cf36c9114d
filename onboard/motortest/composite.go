package motortest

import (
	derrors "github.com/CodedInternet/emmdiag/onboard/errors"
)

// TestStats tallies the checks run by a composite test.
type TestStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Fail    int `json:"fail"`
	Timeout int `json:"timeout"` // failures that were timeouts, also counted in Fail
}

func (s *TestStats) record(err error) {
	s.Total++
	if err == nil {
		s.Success++
		return
	}
	s.Fail++
	if derrors.IsTimeout(err) {
		s.Timeout++
	}
}

func (s TestStats) Passed() bool {
	return s.Fail == 0
}

// AllConnections runs the connection check for every address from start to end
// inclusive. end < start runs nothing.
func (h *Tester) AllConnections(start, end uint8) TestStats {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.allConnections(start, end)
}

// Complete runs connection, enable, status and move checks on one motor. Nothing after
// a failed connection is attempted; later failures are counted independently.
// stats.Fail is the number of failed checks, 0 when everything passed.
func (h *Tester) Complete(addr uint8) TestStats {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.complete(addr)
}

func (h *Tester) allConnections(start, end uint8) (stats TestStats) {
	h.emitf("")
	h.emitf("========== Batch Connection Test Start ==========")

	for addr := int(start); addr <= int(end); addr++ {
		stats.record(h.connection(uint8(addr)))
		h.Clock.Sleep(SCAN_INTERVAL)
	}

	h.emitf("")
	h.emitf("========== Test Completed ==========")
	h.emitf("Successfully connected: %d/%d", stats.Success, stats.Total)

	return
}

func (h *Tester) complete(addr uint8) (stats TestStats) {
	h.emitf("")
	h.emitf("========== Complete Test for Motor[%d] Start ==========", addr)

	h.emitf("")
	h.emitf("[1/4] Connection Test...")
	if err := h.connection(addr); err != nil {
		stats.record(err)
		h.emitf("Connection test FAILED, skip remaining tests")
		return
	}
	stats.record(nil)
	h.Clock.Sleep(STEP_INTERVAL)

	h.emitf("")
	h.emitf("[2/4] Enable Test...")
	stats.record(h.enable(addr))
	h.Clock.Sleep(STEP_INTERVAL)

	h.emitf("")
	h.emitf("[3/4] Status Reading Test...")
	stats.record(h.readStatus(addr))
	h.Clock.Sleep(STEP_INTERVAL)

	h.emitf("")
	h.emitf("[4/4] Movement Test...")
	stats.record(h.smallMove(addr))

	h.emitf("")
	h.emitf("========== Test Completed ==========")
	if stats.Passed() {
		h.emitf("Motor[%d]: All tests PASSED!", addr)
	} else {
		h.emitf("Motor[%d]: %d test(s) FAILED", addr, stats.Fail)
	}

	return
}
