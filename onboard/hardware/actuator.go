package hardware

import (
	"sync"
	"time"
)

const (
	SIM_FIRMWARE = 0x7D
	SIM_HARDWARE = 0x78
	SIM_VBUS     = 24000 // mV
)

// Actuator is one simulated Emm_V5 driver and the motor behind it.
type Actuator struct {
	Addr uint8

	lock    sync.Mutex
	stalled bool
	enabled bool
	moving  bool
	dir     Direction
	speed   uint16
	since   time.Time
	pos     float64 // revolutions, signed
}

// Handle applies one command and returns the reply. ok is false for frames that get no reply.
func (a *Actuator) Handle(cmd uint8, data []byte) (reply []byte, ok bool) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if len(data) == 0 || data[len(data)-1] != CHECKSUM {
		return []byte{CMD_ERROR, STATUS_ERROR, CHECKSUM}, true
	}
	args := data[:len(data)-1]

	switch cmd {
	case CMD_ENABLE:
		if len(args) != 3 || args[0] != ENABLE_MAGIC {
			break
		}
		a.enabled = args[1] != 0
		if !a.enabled {
			a.halt()
		}
		return ack(cmd, STATUS_OK), true

	case CMD_VELOCITY:
		if len(args) != 5 {
			break
		}
		if !a.enabled || a.stalled {
			return ack(cmd, STATUS_CONDITION), true
		}
		a.halt()
		a.moving = true
		a.dir = Direction(args[0])
		a.speed = uint16(args[1])<<8 | uint16(args[2])
		a.since = time.Now()
		return ack(cmd, STATUS_OK), true

	case CMD_STOP:
		if len(args) != 2 || args[0] != STOP_MAGIC {
			break
		}
		a.halt()
		return ack(cmd, STATUS_OK), true

	case S_VER.Code():
		return []byte{cmd, SIM_FIRMWARE, SIM_HARDWARE, CHECKSUM}, true

	case S_FLAG.Code():
		return []byte{cmd, a.flags().Byte(), CHECKSUM}, true

	case S_VBUS.Code():
		return []byte{cmd, byte(SIM_VBUS >> 8), byte(SIM_VBUS & 0xFF), CHECKSUM}, true

	case S_VEL.Code():
		var speed uint16
		if a.moving {
			speed = a.speed
		}
		return []byte{cmd, byte(a.dir), byte(speed >> 8), byte(speed), CHECKSUM}, true

	case S_CPOS.Code():
		pos := a.position()
		sign := byte(0)
		if pos < 0 {
			sign, pos = 1, -pos
		}
		counts := uint32(pos * 65536)
		return []byte{cmd, sign, byte(counts >> 24), byte(counts >> 16), byte(counts >> 8), byte(counts), CHECKSUM}, true
	}

	return []byte{CMD_ERROR, STATUS_ERROR, CHECKSUM}, true
}

// SetStalled forces the stall flag. A stalled driver stops and refuses to move.
func (a *Actuator) SetStalled(stalled bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.stalled = stalled
	if stalled {
		a.halt()
	}
}

func (a *Actuator) Flags() MotorFlags {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.flags()
}

func (a *Actuator) flags() MotorFlags {
	return MotorFlags{
		Enabled:    a.enabled,
		InPosition: !a.moving,
		Stalled:    a.stalled,
	}
}

func (a *Actuator) position() float64 {
	if !a.moving {
		return a.pos
	}
	return a.pos + a.travel()
}

func (a *Actuator) travel() (revs float64) {
	revs = float64(a.speed) / 60 * time.Since(a.since).Seconds()
	if a.dir == DIR_CCW {
		revs = -revs
	}
	return
}

func (a *Actuator) halt() {
	if a.moving {
		a.pos += a.travel()
	}
	a.moving = false
}

func ack(cmd, status uint8) []byte {
	return []byte{cmd, status, CHECKSUM}
}
