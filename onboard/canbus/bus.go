package canbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	READ_BACKOFF_MIN = 10 * time.Millisecond
	READ_BACKOFF_MAX = time.Second
)

// CANBus is a raw socketcan connection shared by every node on one interface.
type CANBus struct {
	ifname string
	fd     int
	wlock  sync.Mutex
	rlock  sync.RWMutex
	rx     map[uint32]chan CANMsg
	open   atomic.Bool
}

// AddListener routes frames from nodeId to rxchan. Use AnyNode to receive frames that
// have no dedicated listener.
func (c *CANBus) AddListener(nodeId uint32, rxchan chan CANMsg) {
	c.rlock.Lock()
	defer c.rlock.Unlock()

	if c.rx == nil {
		c.rx = make(map[uint32]chan CANMsg)
	}
	c.rx[nodeId] = rxchan
}

func (c *CANBus) SendMsg(msg CANMsg) error {
	if !c.open.Load() {
		return ERR_BUS_CLOSED
	}

	raw, err := msg.toByteArray()
	if err != nil {
		return err
	}

	c.wlock.Lock()
	defer c.wlock.Unlock()

	return c.write(raw)
}

func (c *CANBus) Close() error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	log.Debug().Str("bus", c.ifname).Msg("closing can bus")
	return c.close()
}

func (c *CANBus) reader() {
	c.readFrames(c.read, time.Sleep)
}

// readFrames routes frames until the bus closes. After a failed read it waits before
// trying again, doubling the wait up to READ_BACKOFF_MAX while the failures last.
func (c *CANBus) readFrames(read func(raw []byte) error, sleep func(time.Duration)) {
	raw := make([]byte, frameLength)
	var backoff time.Duration

	for c.open.Load() {
		if err := read(raw); err != nil {
			if !c.open.Load() {
				return
			}
			if backoff == 0 {
				backoff = READ_BACKOFF_MIN
				log.Warn().Err(err).Str("bus", c.ifname).Msg("can read failed")
			} else {
				backoff = min(2*backoff, READ_BACKOFF_MAX)
				log.Debug().Err(err).Str("bus", c.ifname).Dur("backoff", backoff).Msg("can read still failing")
			}
			sleep(backoff)
			continue
		}

		if backoff != 0 {
			log.Info().Str("bus", c.ifname).Msg("can reads recovered")
			backoff = 0
		}

		msg := nodeMsgFromByteArray(raw)
		if msg != nil {
			c.route(*msg)
		}
	}
}

func (c *CANBus) route(msg CANMsg) {
	c.rlock.RLock()
	rxc, ok := c.rx[msg.ID]
	if !ok {
		rxc, ok = c.rx[AnyNode]
	}
	c.rlock.RUnlock()

	if !ok {
		log.Debug().Str("bus", c.ifname).Stringer("frame", msg).Msg("dropping frame with no listener")
		return
	}
	rxc <- msg
}
