package broadcast

import (
	"sync"
)

// Sink receives diagnostic output one line at a time, without a line terminator.
type Sink interface {
	EmitLine(text string)
}

// Broadcaster copies every line to its sinks and to any live subscribers.
// Slow subscribers lose lines rather than stall the caller.
type Broadcaster struct {
	lock  sync.RWMutex
	sinks []Sink
	subs  map[chan string]struct{}
}

func New(sinks ...Sink) *Broadcaster {
	return &Broadcaster{
		sinks: sinks,
		subs:  make(map[chan string]struct{}),
	}
}

func (b *Broadcaster) Add(s Sink) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.sinks = append(b.sinks, s)
}

// Subscribe returns a channel of lines emitted from now on. cancel must be called to release it.
func (b *Broadcaster) Subscribe(buffer int) (lines <-chan string, cancel func()) {
	c := make(chan string, buffer)

	b.lock.Lock()
	b.subs[c] = struct{}{}
	b.lock.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			b.lock.Lock()
			delete(b.subs, c)
			b.lock.Unlock()
			close(c)
		})
	}

	return c, cancel
}

func (b *Broadcaster) EmitLine(text string) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	for _, s := range b.sinks {
		s.EmitLine(text)
	}

	for c := range b.subs {
		select {
		case c <- text:
		default:
		}
	}
}
