package motortest

import (
	derrors "github.com/CodedInternet/emmdiag/onboard/errors"
	"github.com/CodedInternet/emmdiag/onboard/hardware"
	"github.com/rs/zerolog/log"
)

// Connection reads the firmware version to prove the driver answers on the bus.
// The raw reply is printed but not decoded.
func (h *Tester) Connection(addr uint8) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.connection(addr)
}

// Enable sends an enable command and checks the acknowledgement status byte.
func (h *Tester) Enable(addr uint8) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.enable(addr)
}

// ReadStatus reads and prints the enable / in position / stall flags.
func (h *Tester) ReadStatus(addr uint8) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.readStatus(addr)
}

// SmallMove enables the motor, runs it in velocity mode for Move.Duration, stops and
// disables it. Make sure the arm is in a safe position first.
func (h *Tester) SmallMove(addr uint8) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.smallMove(addr)
}

func (h *Tester) connection(addr uint8) error {
	if err := h.checkAddr(addr); err != nil {
		return err
	}
	start := h.Clock.Now()

	err := h.send(addr, "Connection", func() error {
		return h.transport.ReadSysParams(addr, hardware.S_VER)
	})
	if err != nil {
		return err
	}

	if h.awaitResponse(start, TIMEOUT_SHORT) == TimedOut {
		h.emitf("Motor[%d]: Connection FAILED - Timeout", addr)
		return derrors.TimeoutError{Addr: addr, Check: "connection", After: TIMEOUT_SHORT}
	}

	h.emitf("Motor[%d]: Connection OK!", addr)
	h.emitf("Received data: %s", hexBytes(h.transport.Inbox().Payload()))

	return nil
}

func (h *Tester) enable(addr uint8) error {
	if err := h.checkAddr(addr); err != nil {
		return err
	}
	start := h.Clock.Now()

	h.emitf("Testing motor[%d] enable...", addr)

	err := h.send(addr, "Enable", func() error {
		return h.transport.EnControl(addr, true, false)
	})
	if err != nil {
		return err
	}

	if h.awaitResponse(start, TIMEOUT_SHORT) == TimedOut {
		h.emitf("Motor[%d]: Enable FAILED - Timeout", addr)
		return derrors.TimeoutError{Addr: addr, Check: "enable", After: TIMEOUT_SHORT}
	}

	resp := h.transport.Inbox().Payload()
	if len(resp) < MIN_REPLY {
		h.emitf("Motor[%d]: Enable FAILED - short response", addr)
		return derrors.ShortResponseError{Addr: addr, Check: "enable", Length: len(resp), Want: MIN_REPLY}
	}

	if status := resp[2]; status != hardware.STATUS_OK {
		h.emitf("Motor[%d]: Enable FAILED, Status: 0x%02X", addr, status)
		return derrors.StatusError{Addr: addr, Check: "enable", Status: status}
	}

	h.emitf("Motor[%d]: Enable OK", addr)
	return nil
}

func (h *Tester) readStatus(addr uint8) error {
	if err := h.checkAddr(addr); err != nil {
		return err
	}
	start := h.Clock.Now()

	h.emitf("Reading motor[%d] status...", addr)

	err := h.send(addr, "Read status", func() error {
		return h.transport.ReadSysParams(addr, hardware.S_FLAG)
	})
	if err != nil {
		return err
	}

	if h.awaitResponse(start, TIMEOUT_SHORT) == TimedOut {
		h.emitf("Motor[%d]: Read status FAILED - Timeout", addr)
		return derrors.TimeoutError{Addr: addr, Check: "status", After: TIMEOUT_SHORT}
	}

	resp := h.transport.Inbox().Payload()
	if len(resp) < MIN_REPLY {
		h.emitf("Motor[%d]: Read status FAILED", addr)
		return derrors.ShortResponseError{Addr: addr, Check: "status", Length: len(resp), Want: MIN_REPLY}
	}

	flags := hardware.DecodeFlags(resp[2])
	h.emitf("Motor[%d] Status:", addr)
	for _, line := range FlagLines(flags) {
		h.emitf("  - %s", line)
	}

	return nil
}

// FlagLines renders decoded status flags the way the status check prints them.
func FlagLines(f hardware.MotorFlags) []string {
	pick := func(b bool, yes, no string) string {
		if b {
			return yes
		}
		return no
	}

	return []string{
		"Enable: " + pick(f.Enabled, "Enabled", "Disabled"),
		"Position: " + pick(f.InPosition, "In Position", "Moving"),
		"Stall: " + pick(f.Stalled, "Stalled", "Normal"),
	}
}

// The move deadline is measured from the start of the whole check, enable included,
// while the stop deadline starts just before the stop is sent.
func (h *Tester) smallMove(addr uint8) error {
	if err := h.checkAddr(addr); err != nil {
		return err
	}
	start := h.Clock.Now()

	h.emitf("Testing motor[%d] movement (velocity mode)...", addr)

	if err := h.enable(addr); err != nil {
		return err
	}

	h.Clock.Sleep(SETTLE_DELAY)

	move := h.Move
	err := h.send(addr, "Move command", func() error {
		return h.transport.VelControl(addr, move.Direction, move.RPM, move.Accel, false)
	})
	if err != nil {
		return err
	}

	if h.awaitResponse(start, TIMEOUT_LONG) == TimedOut {
		h.emitf("Motor[%d]: Move command FAILED", addr)
		return derrors.TimeoutError{Addr: addr, Check: "move", After: TIMEOUT_LONG}
	}

	h.emitf("Motor[%d]: Moving...", addr)
	h.Clock.Sleep(move.Duration)

	stopStart := h.Clock.Now()
	err = h.send(addr, "Stop command", func() error {
		return h.transport.StopNow(addr, false)
	})
	if err != nil {
		return err
	}

	if h.awaitResponse(stopStart, TIMEOUT_LONG) == TimedOut {
		h.emitf("Motor[%d]: Stop command FAILED", addr)
		return derrors.TimeoutError{Addr: addr, Check: "stop", After: TIMEOUT_LONG}
	}

	h.emitf("Motor[%d]: Movement test completed", addr)

	// no wait for the disable acknowledgement
	if err := h.transport.EnControl(addr, false, false); err != nil {
		log.Warn().Err(err).Uint8("addr", addr).Msg("disable after move failed")
	}
	h.Clock.Sleep(SETTLE_DELAY)

	return nil
}

// ReadParam reads any system parameter and prints the raw reply.
func (h *Tester) ReadParam(addr uint8, param hardware.SysParam) ([]byte, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.readParam(addr, param)
}

func (h *Tester) readParam(addr uint8, param hardware.SysParam) (resp []byte, err error) {
	if err = h.checkAddr(addr); err != nil {
		return
	}
	start := h.Clock.Now()

	err = h.send(addr, "Read "+param.String(), func() error {
		return h.transport.ReadSysParams(addr, param)
	})
	if err != nil {
		return
	}

	if h.awaitResponse(start, TIMEOUT_SHORT) == TimedOut {
		h.emitf("Motor[%d]: Read %s FAILED - Timeout", addr, param)
		return nil, derrors.TimeoutError{Addr: addr, Check: "read " + param.String(), After: TIMEOUT_SHORT}
	}

	resp = h.transport.Inbox().Payload()
	h.emitf("Motor[%d] %s: %s", addr, param, hexBytes(resp))

	return
}
