package motortest

import (
	"errors"
	"strings"
	"time"

	"github.com/CodedInternet/emmdiag/onboard/canbus"
	"github.com/CodedInternet/emmdiag/onboard/hardware"
)

type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.slept += d
}

type lineRecorder struct {
	lines []string
}

func (r *lineRecorder) EmitLine(text string) {
	r.lines = append(r.lines, text)
}

func (r *lineRecorder) contains(sub string) bool {
	for _, l := range r.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

// fakeTransport answers synchronously, so a reply is in the inbox before the first poll.
type fakeTransport struct {
	inbox  hardware.Inbox
	sent   []canbus.CANMsg
	txerr  bool
	silent map[uint8]bool   // addresses that never answer
	mute   map[uint8]bool   // function codes that never get an answer
	status map[uint8][]byte // queued ack status bytes per function code, STATUS_OK once drained
	flags  byte
	short  bool // replies cut to a two byte frame: function code and status, no checksum
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		silent: make(map[uint8]bool),
		mute:   make(map[uint8]bool),
		status: make(map[uint8][]byte),
	}
}

func (f *fakeTransport) transmit(msg canbus.CANMsg, err error) error {
	if err != nil {
		return err
	}
	if f.txerr {
		return errors.New("simulated tx error")
	}
	f.sent = append(f.sent, msg)

	addr := uint8(msg.ID)
	if f.silent[addr] || f.mute[msg.Cmd] {
		return nil
	}

	var reply []byte
	switch msg.Cmd {
	case hardware.S_VER.Code():
		reply = []byte{addr, msg.Cmd, hardware.SIM_FIRMWARE, hardware.SIM_HARDWARE, hardware.CHECKSUM}
	case hardware.S_FLAG.Code():
		reply = []byte{addr, msg.Cmd, f.flags, hardware.CHECKSUM}
	default:
		status := byte(hardware.STATUS_OK)
		if q := f.status[msg.Cmd]; len(q) > 0 {
			status, f.status[msg.Cmd] = q[0], q[1:]
		}
		reply = []byte{addr, msg.Cmd, status, hardware.CHECKSUM}
	}
	if f.short {
		reply = reply[:3]
	}

	f.inbox.Deliver(reply)
	return nil
}

func (f *fakeTransport) ReadSysParams(addr uint8, s hardware.SysParam) error {
	return f.transmit(hardware.ReadSysParamsMsg(addr, s))
}

func (f *fakeTransport) EnControl(addr uint8, state, snF bool) error {
	return f.transmit(hardware.EnControlMsg(addr, state, snF), nil)
}

func (f *fakeTransport) VelControl(addr uint8, dir hardware.Direction, vel uint16, acc uint8, snF bool) error {
	return f.transmit(hardware.VelControlMsg(addr, dir, vel, acc, snF))
}

func (f *fakeTransport) StopNow(addr uint8, snF bool) error {
	return f.transmit(hardware.StopNowMsg(addr, snF), nil)
}

func (f *fakeTransport) Inbox() *hardware.Inbox {
	return &f.inbox
}

func (f *fakeTransport) count(cmd uint8) (n int) {
	for _, msg := range f.sent {
		if msg.Cmd == cmd {
			n++
		}
	}
	return
}

func (f *fakeTransport) cmds() (cmds []uint8) {
	for _, msg := range f.sent {
		cmds = append(cmds, msg.Cmd)
	}
	return
}

func createTestTester() (h *Tester, tr *fakeTransport, clock *fakeClock, out *lineRecorder) {
	tr = newFakeTransport()
	clock = &fakeClock{now: time.Unix(1700000000, 0)}
	out = new(lineRecorder)

	h = New(tr, out)
	h.Clock = clock
	return
}
