package canbus

import (
	"encoding/binary"
)

// struct can_frame layout
const (
	frameLength = 16
	frameDLC    = 4
	frameData   = 8

	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_EFF_MASK = 0x1fffffff
	CAN_MAX_DLEN = 0x8
)

func (msg *CANMsg) toByteArray() (raw []byte, err error) {
	if len(msg.Data) > msgMaxData {
		return nil, ERR_DATA_TOO_LONG
	}

	raw = make([]byte, frameLength)

	oid := (msg.ID<<8 | uint32(msg.Packet)) & CAN_EFF_MASK
	binary.LittleEndian.PutUint32(raw[0:4], oid|CAN_EFF_FLAG)

	raw[frameDLC] = byte(1 + len(msg.Data))
	raw[frameData] = msg.Cmd
	copy(raw[frameData+1:], msg.Data)

	return
}

// nodeMsgFromByteArray decodes a raw can_frame. Standard, remote and error frames are
// not Emm traffic and return nil, as do empty frames.
func nodeMsgFromByteArray(raw []byte) (msg *CANMsg) {
	if len(raw) < frameLength {
		return nil
	}

	oid := binary.LittleEndian.Uint32(raw[0:4])
	if oid&CAN_EFF_FLAG == 0 || oid&(CAN_RTR_FLAG|CAN_ERR_FLAG) != 0 {
		return nil
	}

	dataLength := int(raw[frameDLC])
	if dataLength == 0 || dataLength > CAN_MAX_DLEN {
		return nil
	}

	oid &= CAN_EFF_MASK
	msg = &CANMsg{
		ID:     oid >> 8,
		Packet: uint8(oid),
		Cmd:    raw[frameData],
		Data:   make([]byte, dataLength-1),
	}
	copy(msg.Data, raw[frameData+1:frameData+dataLength])

	return msg
}
