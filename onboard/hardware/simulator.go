package hardware

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/CodedInternet/emmdiag/onboard/canbus"
	"github.com/rs/zerolog/log"
)

const SIM_LATENCY = 2 * time.Millisecond

// SimulatedBus stands in for a socketcan interface with a set of Emm_V5 drivers attached.
// Frames for addresses with no actuator are swallowed, as on a real bus.
type SimulatedBus struct {
	Actuators map[uint8]*Actuator
	Latency   time.Duration

	lock    sync.RWMutex
	rx      map[uint32]chan canbus.CANMsg
	open    atomic.Bool
	txCount atomic.Int64
}

func NewSimulatedBus(addrs ...uint8) (bus *SimulatedBus) {
	bus = &SimulatedBus{
		Actuators: make(map[uint8]*Actuator, len(addrs)),
		Latency:   SIM_LATENCY,
		rx:        make(map[uint32]chan canbus.CANMsg),
	}
	for _, addr := range addrs {
		bus.Actuators[addr] = &Actuator{Addr: addr}
	}
	bus.open.Store(true)

	log.Info().Int("motors", len(addrs)).Msg("simulated can bus open")

	return
}

func (s *SimulatedBus) AddListener(nodeId uint32, rxchan chan canbus.CANMsg) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.rx[nodeId] = rxchan
}

func (s *SimulatedBus) SendMsg(msg canbus.CANMsg) error {
	if !s.open.Load() {
		return canbus.ERR_BUS_CLOSED
	}
	s.txCount.Add(1)

	if msg.ID > 0xFF {
		return nil
	}
	a, ok := s.Actuators[uint8(msg.ID)]
	if !ok {
		return nil
	}

	reply, ok := a.Handle(msg.Cmd, msg.Data)
	if !ok {
		return nil
	}

	resp := canbus.CANMsg{ID: msg.ID, Cmd: reply[0], Data: reply[1:]}
	go func() {
		time.Sleep(s.Latency)
		s.deliver(resp)
	}()

	return nil
}

// TxCount is the number of frames sent on the bus so far.
func (s *SimulatedBus) TxCount() int {
	return int(s.txCount.Load())
}

func (s *SimulatedBus) Close() error {
	s.open.Store(false)
	return nil
}

func (s *SimulatedBus) deliver(msg canbus.CANMsg) {
	if !s.open.Load() {
		return
	}

	s.lock.RLock()
	rxc, ok := s.rx[msg.ID]
	if !ok {
		rxc, ok = s.rx[canbus.AnyNode]
	}
	s.lock.RUnlock()

	if ok {
		rxc <- msg
	}
}
