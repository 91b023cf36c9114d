package hardware

import (
	"sync"

	"github.com/CodedInternet/emmdiag/onboard/canbus"
	"github.com/rs/zerolog/log"
)

// Driver speaks Emm_V5 to every motor on one bus. Responses from any address land in
// the one shared Inbox as [addr, function code, data...].
type Driver struct {
	bus   canbus.CANBusInterface
	lock  *sync.Mutex
	inbox *Inbox
	rx    chan canbus.CANMsg
	done  chan struct{}
	once  sync.Once
}

func NewDriver(bus canbus.CANBusInterface) (d *Driver) {
	d = &Driver{
		bus:   bus,
		lock:  new(sync.Mutex),
		inbox: new(Inbox),
		rx:    make(chan canbus.CANMsg, 8),
		done:  make(chan struct{}),
	}

	d.bus.AddListener(canbus.AnyNode, d.rx)
	go d.listen()

	return
}

func (d *Driver) Inbox() *Inbox {
	return d.inbox
}

func (d *Driver) SendMsg(msg canbus.CANMsg) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	log.Debug().Stringer("frame", msg).Msg("tx")
	return d.bus.SendMsg(msg)
}

func (d *Driver) ReadSysParams(addr uint8, s SysParam) error {
	msg, err := ReadSysParamsMsg(addr, s)
	if err != nil {
		return err
	}
	return d.SendMsg(msg)
}

func (d *Driver) EnControl(addr uint8, state, snF bool) error {
	return d.SendMsg(EnControlMsg(addr, state, snF))
}

func (d *Driver) VelControl(addr uint8, dir Direction, vel uint16, acc uint8, snF bool) error {
	msg, err := VelControlMsg(addr, dir, vel, acc, snF)
	if err != nil {
		return err
	}
	return d.SendMsg(msg)
}

func (d *Driver) StopNow(addr uint8, snF bool) error {
	return d.SendMsg(StopNowMsg(addr, snF))
}

// Close stops the listen loop and closes the bus.
func (d *Driver) Close() (err error) {
	d.once.Do(func() {
		close(d.done)
		err = d.bus.Close()
	})
	return
}

func (d *Driver) listen() {
	for {
		select {
		case msg := <-d.rx:
			log.Debug().Stringer("frame", msg).Msg("rx")
			d.inbox.Deliver(append([]byte{byte(msg.ID)}, msg.Bytes()...))

		case <-d.done:
			return
		}
	}
}
