package motortest

import (
	"github.com/CodedInternet/emmdiag/onboard/hardware"
)

// Session is a Tester held by one caller. Its checks run without taking the tester lock
// again, so a caller that must not wait behind another check uses TryLock and a Session
// instead of the Tester methods.
type Session struct {
	h *Tester
}

// TryLock claims the tester without waiting. ok is false while any check is running,
// whoever started it.
func (h *Tester) TryLock() (s *Session, ok bool) {
	if !h.lock.TryLock() {
		return nil, false
	}
	return &Session{h: h}, true
}

// Unlock releases the tester. The session must not be used afterwards.
func (s *Session) Unlock() {
	s.h.lock.Unlock()
}

func (s *Session) Connection(addr uint8) error { return s.h.connection(addr) }
func (s *Session) Enable(addr uint8) error     { return s.h.enable(addr) }
func (s *Session) ReadStatus(addr uint8) error { return s.h.readStatus(addr) }
func (s *Session) SmallMove(addr uint8) error  { return s.h.smallMove(addr) }

func (s *Session) AllConnections(start, end uint8) TestStats {
	return s.h.allConnections(start, end)
}

func (s *Session) Complete(addr uint8) TestStats {
	return s.h.complete(addr)
}

func (s *Session) ReadParam(addr uint8, param hardware.SysParam) ([]byte, error) {
	return s.h.readParam(addr, param)
}
