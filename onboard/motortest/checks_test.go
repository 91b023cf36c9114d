package motortest

import (
	"errors"
	"fmt"
	"testing"
	"time"

	derrors "github.com/CodedInternet/emmdiag/onboard/errors"
	"github.com/CodedInternet/emmdiag/onboard/hardware"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWaitFor(t *testing.T) {
	Convey("waitFor polls until the condition holds", t, func() {
		clock := &fakeClock{now: time.Unix(0, 0)}
		start := clock.Now()
		polls := 0
		ok := waitFor(clock, start, time.Second, time.Millisecond, func() bool {
			polls++
			return polls == 5
		})
		So(ok, ShouldBeTrue)
		So(clock.Now().Sub(start), ShouldEqual, 4*time.Millisecond)

		Convey("and gives up strictly after the timeout", func() {
			start := clock.Now()
			ok := waitFor(clock, start, 10*time.Millisecond, time.Millisecond, func() bool { return false })
			So(ok, ShouldBeFalse)
			So(clock.Now().Sub(start), ShouldEqual, 11*time.Millisecond)
		})

		Convey("an immediate condition never sleeps", func() {
			ok := waitFor(clock, clock.Now(), 0, time.Millisecond, func() bool { return true })
			So(ok, ShouldBeTrue)
			So(clock.slept, ShouldEqual, 4*time.Millisecond)
		})
	})
}

func TestTimeouts(t *testing.T) {
	checks := map[string]func(h *Tester, addr uint8) error{
		"connection": (*Tester).Connection,
		"enable":     (*Tester).Enable,
		"status":     (*Tester).ReadStatus,
	}

	for name, check := range checks {
		Convey(fmt.Sprintf("%s times out within one poll of the deadline", name), t, func() {
			h, tr, clock, _ := createTestTester()
			tr.silent[2] = true

			start := clock.Now()
			err := check(h, 2)
			elapsed := clock.Now().Sub(start)

			So(derrors.IsTimeout(err), ShouldBeTrue)
			So(elapsed, ShouldBeGreaterThanOrEqualTo, TIMEOUT_SHORT)
			So(elapsed, ShouldBeLessThanOrEqualTo, TIMEOUT_SHORT+POLL_INTERVAL)
			So(len(tr.sent), ShouldEqual, 1)
		})
	}

	Convey("the move deadline includes the enable phase", t, func() {
		h, tr, clock, out := createTestTester()
		tr.mute[hardware.CMD_VELOCITY] = true

		start := clock.Now()
		err := h.SmallMove(1)
		elapsed := clock.Now().Sub(start)

		So(derrors.IsTimeout(err), ShouldBeTrue)
		So(elapsed, ShouldBeGreaterThanOrEqualTo, TIMEOUT_LONG)
		So(elapsed, ShouldBeLessThanOrEqualTo, TIMEOUT_LONG+POLL_INTERVAL)
		So(out.contains("Motor[1]: Move command FAILED"), ShouldBeTrue)
		So(tr.count(hardware.CMD_STOP), ShouldEqual, 0)
	})

	Convey("the stop deadline starts just before the stop", t, func() {
		h, tr, clock, out := createTestTester()
		tr.mute[hardware.CMD_STOP] = true

		start := clock.Now()
		err := h.SmallMove(1)
		elapsed := clock.Now().Sub(start)

		So(derrors.IsTimeout(err), ShouldBeTrue)
		So(elapsed, ShouldEqual, SETTLE_DELAY+DEFAULT_MOVE_DURATION+TIMEOUT_LONG+POLL_INTERVAL)
		So(out.contains("Motor[1]: Stop command FAILED"), ShouldBeTrue)
	})
}

func TestConnection(t *testing.T) {
	Convey("a reply means connected", t, func() {
		h, tr, clock, out := createTestTester()

		So(h.Connection(4), ShouldBeNil)
		So(tr.sent, ShouldHaveLength, 1)
		So(tr.sent[0].Cmd, ShouldEqual, hardware.S_VER.Code())
		So(tr.sent[0].ID, ShouldEqual, 4)
		So(clock.slept, ShouldEqual, time.Duration(0))

		So(out.lines, ShouldResemble, []string{
			"Motor[4]: Connection OK!",
			"Received data: 0x04 0x1F 0x7D 0x78 0x6B",
		})
	})

	Convey("addresses outside 1-6 are refused without sending", t, func() {
		h, tr, _, out := createTestTester()

		for _, addr := range []uint8{0, 7, 255} {
			err := h.Connection(addr)
			var ia derrors.InvalidAddressError
			So(errors.As(err, &ia), ShouldBeTrue)
			So(ia.Addr, ShouldEqual, int(addr))
		}
		So(tr.sent, ShouldBeEmpty)
		So(out.contains("invalid address"), ShouldBeTrue)
	})

	Convey("send failures are reported", t, func() {
		h, tr, _, out := createTestTester()
		tr.txerr = true

		err := h.Connection(1)
		var se derrors.SendError
		So(errors.As(err, &se), ShouldBeTrue)
		So(out.contains("Motor[1]: Connection FAILED - simulated tx error"), ShouldBeTrue)
	})
}

func TestEnable(t *testing.T) {
	Convey("status 0 is success", t, func() {
		h, tr, _, out := createTestTester()

		So(h.Enable(3), ShouldBeNil)
		So(tr.sent[0].Bytes(), ShouldResemble, []byte{0xF3, 0xAB, 0x01, 0x00, 0x6B})
		So(out.lines, ShouldResemble, []string{"Testing motor[3] enable...", "Motor[3]: Enable OK"})
	})

	for _, status := range []byte{0x01, 0x02, hardware.STATUS_CONDITION, hardware.STATUS_ERROR, 0xFF} {
		Convey(fmt.Sprintf("status 0x%02X is a failure carrying the code", status), t, func() {
			h, tr, _, out := createTestTester()
			tr.status[hardware.CMD_ENABLE] = []byte{status}

			err := h.Enable(3)
			var se derrors.StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Status, ShouldEqual, status)
			So(out.contains(fmt.Sprintf("Motor[3]: Enable FAILED, Status: 0x%02X", status)), ShouldBeTrue)
		})
	}

	Convey("a reply too short to hold a status fails", t, func() {
		h, tr, _, _ := createTestTester()
		tr.short = true

		var sr derrors.ShortResponseError
		So(errors.As(h.Enable(3), &sr), ShouldBeTrue)
	})
}

func TestReadStatus(t *testing.T) {
	for flags := 0; flags < 8; flags++ {
		Convey(fmt.Sprintf("flags 0b%03b decode independently", flags), t, func() {
			h, tr, _, out := createTestTester()
			tr.flags = byte(flags)

			So(h.ReadStatus(5), ShouldBeNil)
			So(tr.sent[0].Cmd, ShouldEqual, hardware.S_FLAG.Code())

			enable, position, stall := "Disabled", "Moving", "Normal"
			if flags&1 != 0 {
				enable = "Enabled"
			}
			if flags&2 != 0 {
				position = "In Position"
			}
			if flags&4 != 0 {
				stall = "Stalled"
			}

			So(out.lines, ShouldResemble, []string{
				"Reading motor[5] status...",
				"Motor[5] Status:",
				"  - Enable: " + enable,
				"  - Position: " + position,
				"  - Stall: " + stall,
			})
		})

		Convey(fmt.Sprintf("flags 0b%03b in a short reply fail", flags), t, func() {
			h, tr, _, out := createTestTester()
			tr.flags = byte(flags)
			tr.short = true

			err := h.ReadStatus(5)
			var sr derrors.ShortResponseError
			So(errors.As(err, &sr), ShouldBeTrue)
			So(sr.Length, ShouldEqual, 3)
			So(sr.Want, ShouldEqual, MIN_REPLY)
			So(out.contains("Motor[5]: Read status FAILED"), ShouldBeTrue)
		})
	}
}

func TestSmallMove(t *testing.T) {
	Convey("enable, move, stop then disable", t, func() {
		h, tr, clock, out := createTestTester()

		start := clock.Now()
		So(h.SmallMove(2), ShouldBeNil)

		So(tr.cmds(), ShouldResemble, []uint8{
			hardware.CMD_ENABLE, hardware.CMD_VELOCITY, hardware.CMD_STOP, hardware.CMD_ENABLE,
		})
		So(tr.sent[1].Data, ShouldResemble, []byte{0x00, 0x00, 0x64, 0x32, 0x00, 0x6B})
		So(tr.sent[3].Data[1], ShouldEqual, 0) // disable
		So(clock.Now().Sub(start), ShouldEqual, SETTLE_DELAY+DEFAULT_MOVE_DURATION+SETTLE_DELAY)
		So(out.contains("Motor[2]: Moving..."), ShouldBeTrue)
		So(out.contains("Motor[2]: Movement test completed"), ShouldBeTrue)

		Convey("with the configured move", func() {
			h.Move = MoveParams{Direction: hardware.DIR_CCW, RPM: 300, Accel: 10, Duration: time.Second}
			tr.sent = nil

			So(h.SmallMove(2), ShouldBeNil)
			So(tr.sent[1].Data, ShouldResemble, []byte{0x01, 0x01, 0x2C, 0x0A, 0x00, 0x6B})
		})
	})

	Convey("a failed enable sends no motion", t, func() {
		h, tr, _, _ := createTestTester()
		tr.status[hardware.CMD_ENABLE] = []byte{hardware.STATUS_CONDITION}

		So(h.SmallMove(2), ShouldBeError)
		So(tr.count(hardware.CMD_VELOCITY), ShouldEqual, 0)
		So(tr.count(hardware.CMD_STOP), ShouldEqual, 0)

		Convey("nor does a timed out one", func() {
			tr.sent = nil
			tr.silent[2] = true
			So(derrors.IsTimeout(h.SmallMove(2)), ShouldBeTrue)
			So(tr.cmds(), ShouldResemble, []uint8{hardware.CMD_ENABLE})
		})
	})

	Convey("out of range speeds are refused by the encoder", t, func() {
		h, tr, _, _ := createTestTester()
		h.Move.RPM = hardware.VEL_MAX + 1

		var se derrors.SendError
		So(errors.As(h.SmallMove(2), &se), ShouldBeTrue)
		So(se.Err, ShouldEqual, hardware.ERR_VEL_RANGE)
		So(tr.count(hardware.CMD_VELOCITY), ShouldEqual, 0)
	})
}

func TestReadParam(t *testing.T) {
	Convey("raw replies are returned and printed", t, func() {
		h, tr, _, out := createTestTester()

		resp, err := h.ReadParam(1, hardware.S_VER)
		So(err, ShouldBeNil)
		So(resp, ShouldResemble, []byte{1, 0x1F, 0x7D, 0x78, 0x6B})
		So(out.lines, ShouldResemble, []string{"Motor[1] ver: 0x01 0x1F 0x7D 0x78 0x6B"})

		Convey("silence is a timeout", func() {
			tr.silent[1] = true
			_, err := h.ReadParam(1, hardware.S_VBUS)
			So(derrors.IsTimeout(err), ShouldBeTrue)
		})
	})
}
