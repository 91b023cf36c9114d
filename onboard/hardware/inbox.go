package hardware

import (
	"sync"
	"sync/atomic"
)

const INBOX_SIZE = 16

// Inbox is the single response slot shared by every command sent through a Driver.
// Exactly one goroutine delivers into it. Readers reset it, send one command and
// then poll Arrived; Payload is only meaningful once Arrived has returned true.
type Inbox struct {
	arrived atomic.Bool
	lock    sync.Mutex
	length  int
	payload [INBOX_SIZE]byte
}

func (i *Inbox) Reset() {
	i.arrived.Store(false)
}

func (i *Inbox) Arrived() bool {
	return i.arrived.Load()
}

// Deliver stores a response and raises the arrived flag. Data beyond INBOX_SIZE is dropped.
func (i *Inbox) Deliver(data []byte) {
	i.lock.Lock()
	i.length = copy(i.payload[:], data)
	i.lock.Unlock()

	i.arrived.Store(true)
}

func (i *Inbox) Len() int {
	i.lock.Lock()
	defer i.lock.Unlock()
	return i.length
}

// Payload returns a copy of the last delivered response.
func (i *Inbox) Payload() []byte {
	i.lock.Lock()
	defer i.lock.Unlock()

	buf := make([]byte, i.length)
	copy(buf, i.payload[:i.length])
	return buf
}
