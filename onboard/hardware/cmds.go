package hardware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CodedInternet/emmdiag/onboard/canbus"
)

// Emm_V5 function codes
const (
	CMD_ENABLE   = 0xF3
	CMD_VELOCITY = 0xF6
	CMD_STOP     = 0xFE
	CMD_ERROR    = 0x00 // function code of the reply to a malformed command

	ENABLE_MAGIC = 0xAB
	STOP_MAGIC   = 0x98
	CHECKSUM     = 0x6B // fixed checksum mode

	VEL_MAX = 5000 // RPM
)

// status byte of a command acknowledgement
const (
	STATUS_OK        = 0x00
	STATUS_CONDITION = 0xE2 // conditions not met, e.g. moving while disabled
	STATUS_ERROR     = 0xEE
)

var (
	ERR_VEL_RANGE     = fmt.Errorf("velocity exceeds %d RPM", VEL_MAX)
	ERR_UNKNOWN_PARAM = errors.New("unknown system parameter")
)

// SysParam selects the system parameter returned by a read command.
type SysParam uint8

const (
	S_VER   SysParam = iota // firmware and hardware version
	S_RL                    // phase resistance and inductance
	S_PID                   // position loop PID
	S_VBUS                  // bus voltage
	S_CPHA                  // phase current
	S_ENCL                  // linearised encoder value
	S_TPOS                  // target position
	S_VEL                   // real time speed
	S_CPOS                  // real time position
	S_PERR                  // position error
	S_FLAG                  // enable / in position / stall flags
	S_ORG                   // homing state
	S_Conf                  // driver configuration
	S_State                 // system state
)

var sysParams = []struct {
	name string
	code []byte
}{
	S_VER:   {"ver", []byte{0x1F}},
	S_RL:    {"rl", []byte{0x20}},
	S_PID:   {"pid", []byte{0x21}},
	S_VBUS:  {"vbus", []byte{0x24}},
	S_CPHA:  {"cpha", []byte{0x27}},
	S_ENCL:  {"encl", []byte{0x31}},
	S_TPOS:  {"tpos", []byte{0x33}},
	S_VEL:   {"vel", []byte{0x35}},
	S_CPOS:  {"cpos", []byte{0x36}},
	S_PERR:  {"perr", []byte{0x37}},
	S_FLAG:  {"flag", []byte{0x3A}},
	S_ORG:   {"org", []byte{0x3B}},
	S_Conf:  {"conf", []byte{0x42, 0x6C}},
	S_State: {"state", []byte{0x43, 0x7A}},
}

func (s SysParam) String() string {
	if int(s) >= len(sysParams) {
		return fmt.Sprintf("SysParam(%d)", uint8(s))
	}
	return sysParams[s].name
}

// Code is the function code that reads s.
func (s SysParam) Code() uint8 {
	if int(s) >= len(sysParams) {
		return 0
	}
	return sysParams[s].code[0]
}

// ParseSysParam accepts the short names used by String, case insensitive, with or without the S_ prefix.
func ParseSysParam(name string) (SysParam, error) {
	name = strings.TrimPrefix(strings.ToLower(name), "s_")
	for i, p := range sysParams {
		if p.name == name {
			return SysParam(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ERR_UNKNOWN_PARAM, name)
}

// SysParamNames lists every readable parameter, in code order.
func SysParamNames() []string {
	names := make([]string, len(sysParams))
	for i, p := range sysParams {
		names[i] = p.name
	}
	return names
}

// Direction of a velocity mode move.
type Direction uint8

const (
	DIR_CW  Direction = 0
	DIR_CCW Direction = 1
)

func (d Direction) String() string {
	if d == DIR_CCW {
		return "ccw"
	}
	return "cw"
}

func b2u(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func ReadSysParamsMsg(addr uint8, s SysParam) (msg canbus.CANMsg, err error) {
	if int(s) >= len(sysParams) {
		return msg, ERR_UNKNOWN_PARAM
	}
	code := sysParams[s].code

	msg.ID = uint32(addr)
	msg.Cmd = code[0]
	msg.Data = append(append(msg.Data, code[1:]...), CHECKSUM)

	return
}

// EnControlMsg enables or disables the driver. snF marks the command for a later multi-machine sync.
func EnControlMsg(addr uint8, state, snF bool) canbus.CANMsg {
	return canbus.CANMsg{
		ID:   uint32(addr),
		Cmd:  CMD_ENABLE,
		Data: []byte{ENABLE_MAGIC, b2u(state), b2u(snF), CHECKSUM},
	}
}

// VelControlMsg starts a velocity mode move. vel is in RPM, acc is the acceleration step 0-255 (0 starts immediately).
func VelControlMsg(addr uint8, dir Direction, vel uint16, acc uint8, snF bool) (msg canbus.CANMsg, err error) {
	if vel > VEL_MAX {
		return msg, ERR_VEL_RANGE
	}

	return canbus.CANMsg{
		ID:   uint32(addr),
		Cmd:  CMD_VELOCITY,
		Data: []byte{byte(dir), byte(vel >> 8), byte(vel), acc, b2u(snF), CHECKSUM},
	}, nil
}

func StopNowMsg(addr uint8, snF bool) canbus.CANMsg {
	return canbus.CANMsg{
		ID:   uint32(addr),
		Cmd:  CMD_STOP,
		Data: []byte{STOP_MAGIC, b2u(snF), CHECKSUM},
	}
}
