package hardware

// flag bits of the S_FLAG response
const (
	FLAG_ENABLED     = 0x01
	FLAG_IN_POSITION = 0x02
	FLAG_STALLED     = 0x04
)

type MotorFlags struct {
	Enabled, InPosition, Stalled bool
}

func DecodeFlags(status byte) MotorFlags {
	return MotorFlags{
		Enabled:    status&FLAG_ENABLED != 0,
		InPosition: status&FLAG_IN_POSITION != 0,
		Stalled:    status&FLAG_STALLED != 0,
	}
}

func (f MotorFlags) Byte() (status byte) {
	if f.Enabled {
		status |= FLAG_ENABLED
	}
	if f.InPosition {
		status |= FLAG_IN_POSITION
	}
	if f.Stalled {
		status |= FLAG_STALLED
	}
	return
}
