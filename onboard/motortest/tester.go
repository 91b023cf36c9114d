package motortest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	derrors "github.com/CodedInternet/emmdiag/onboard/errors"
	"github.com/CodedInternet/emmdiag/onboard/hardware"
)

const (
	TIMEOUT_SHORT = 1000 * time.Millisecond
	TIMEOUT_LONG  = 5000 * time.Millisecond
	POLL_INTERVAL = time.Millisecond

	// address byte plus a frame of at least 3 bytes: function code, status or flags, checksum
	MIN_REPLY = 4

	SETTLE_DELAY  = 100 * time.Millisecond // after enable, and after the closing disable
	SCAN_INTERVAL = 100 * time.Millisecond // between devices in a batch
	STEP_INTERVAL = 200 * time.Millisecond // between the steps of a complete test

	MOTOR_ADDR_MIN = 1
	MOTOR_ADDR_MAX = 6 // six axis arm

	DEFAULT_SPEED         = 100 // RPM
	DEFAULT_ACC           = 50
	DEFAULT_MOVE_DURATION = 500 * time.Millisecond
)

// Transport is the Emm_V5 command set the checks need plus the shared response inbox.
type Transport interface {
	ReadSysParams(addr uint8, s hardware.SysParam) error
	EnControl(addr uint8, state, snF bool) error
	VelControl(addr uint8, dir hardware.Direction, vel uint16, acc uint8, snF bool) error
	StopNow(addr uint8, snF bool) error
	Inbox() *hardware.Inbox
}

// Output receives the human readable narrative, one line per call.
type Output interface {
	EmitLine(text string)
}

// MoveParams shape the velocity mode move of the small move check.
type MoveParams struct {
	Direction hardware.Direction
	RPM       uint16
	Accel     uint8
	Duration  time.Duration
}

var DefaultMove = MoveParams{
	Direction: hardware.DIR_CW,
	RPM:       DEFAULT_SPEED,
	Accel:     DEFAULT_ACC,
	Duration:  DEFAULT_MOVE_DURATION,
}

// Tester runs diagnostic checks against the motors behind one transport.
// Checks are serialised: the inbox only ever has one outstanding request.
type Tester struct {
	Move  MoveParams
	Clock Clock

	transport Transport
	out       Output
	lock      sync.Mutex
}

func New(transport Transport, out Output) *Tester {
	return &Tester{
		Move:      DefaultMove,
		Clock:     SystemClock,
		transport: transport,
		out:       out,
	}
}

// ValidAddr checks addr against the arm's address range.
func ValidAddr(addr int) error {
	if addr < MOTOR_ADDR_MIN || addr > MOTOR_ADDR_MAX {
		return derrors.InvalidAddressError{Addr: addr, Min: MOTOR_ADDR_MIN, Max: MOTOR_ADDR_MAX}
	}
	return nil
}

func (h *Tester) checkAddr(addr uint8) error {
	err := ValidAddr(int(addr))
	if err != nil {
		h.emitf("Motor[%d]: invalid address, must be %d-%d", addr, MOTOR_ADDR_MIN, MOTOR_ADDR_MAX)
	}
	return err
}

func (h *Tester) emitf(format string, a ...interface{}) {
	h.out.EmitLine(fmt.Sprintf(format, a...))
}

// send resets the inbox and issues one command.
func (h *Tester) send(addr uint8, check string, cmd func() error) error {
	h.transport.Inbox().Reset()
	if err := cmd(); err != nil {
		h.emitf("Motor[%d]: %s FAILED - %v", addr, check, err)
		return derrors.SendError{Addr: addr, Check: check, Err: err}
	}
	return nil
}

func hexBytes(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("0x%02X", b)
	}
	return strings.Join(parts, " ")
}
