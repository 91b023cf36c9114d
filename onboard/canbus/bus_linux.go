package canbus

import (
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// NewCANBus opens a raw socket on the named socketcan interface, e.g. can0.
func NewCANBus(ifname string) (bus *CANBus, err error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return
	}

	bus = &CANBus{ifname: ifname}

	bus.fd, err = unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("can socket: %w", err)
	}

	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err = unix.Bind(bus.fd, addr); err != nil {
		unix.Close(bus.fd)
		return nil, fmt.Errorf("can bind %s: %w", ifname, err)
	}

	bus.rx = make(map[uint32]chan CANMsg)
	bus.open.Store(true)
	go bus.reader()

	log.Info().Str("bus", ifname).Int("ifindex", iface.Index).Msg("can bus open")

	return
}

func (c *CANBus) write(raw []byte) error {
	n, err := unix.Write(c.fd, raw)
	if err != nil {
		return err
	}
	if n != len(raw) {
		return fmt.Errorf("short can write: %d of %d bytes", n, len(raw))
	}
	return nil
}

func (c *CANBus) read(raw []byte) error {
	n, err := unix.Read(c.fd, raw)
	if err != nil {
		return err
	}
	if n < frameLength {
		return fmt.Errorf("short can read: %d bytes", n)
	}
	return nil
}

func (c *CANBus) close() error {
	// shutdown unblocks the pending read in reader()
	unix.Shutdown(c.fd, unix.SHUT_RDWR)
	return unix.Close(c.fd)
}
