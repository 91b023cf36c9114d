package canbus

import (
	"errors"
	"fmt"
)

const (
	// AnyNode registers a listener that receives frames from every node on the bus.
	AnyNode = 0xFFFFFFFF

	msgMaxData = 7 // data[0] always carries the command
)

// errors
var (
	ERR_DATA_TOO_LONG = errors.New("data length exceeds 7 bytes")
	ERR_BUS_CLOSED    = errors.New("bus has been closed")
)

// CANMsg is a single Emm extended frame.
// The 29 bit identifier carries the node address in bits 8-15 and the packet index in bits 0-7.
type CANMsg struct {
	ID     uint32 // node address this is being issued for or received from
	Packet uint8  // packet index within a multi frame command, 0 for single frames
	Cmd    uint8  // function code, sent as data[0]
	Data   []byte // parameters following the function code, checksum included. DLC is 1+len(Data).
}

// Bytes returns the frame payload exactly as it appears on the wire.
func (msg CANMsg) Bytes() []byte {
	raw := make([]byte, 0, 1+len(msg.Data))
	raw = append(raw, msg.Cmd)
	return append(raw, msg.Data...)
}

func (msg CANMsg) String() string {
	s := fmt.Sprintf("0x%08x \t[%d] \t", msg.ID<<8|uint32(msg.Packet), 1+len(msg.Data))
	for _, b := range msg.Bytes() {
		s += fmt.Sprintf("%02x ", b)
	}
	return s
}

// CANBusInterface is the part of a bus that nodes depend on.
type CANBusInterface interface {
	AddListener(nodeId uint32, rxchan chan CANMsg)
	SendMsg(msg CANMsg) error
	Close() error
}
