//go:build !linux

package canbus

import (
	"errors"
)

var ERR_NO_SOCKETCAN = errors.New("socketcan is only available on linux, use the simulator")

func NewCANBus(ifname string) (bus *CANBus, err error) {
	return nil, ERR_NO_SOCKETCAN
}

func (c *CANBus) write(raw []byte) error { return ERR_NO_SOCKETCAN }
func (c *CANBus) read(raw []byte) error  { return ERR_NO_SOCKETCAN }
func (c *CANBus) close() error           { return nil }
