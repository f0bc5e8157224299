package events

import "sync"

// Emitter is the producing side of the bus.
type Emitter interface {
	Emit(ev Event)
}

// Bus is an unbounded multi-producer, single-consumer event stream. Emit
// never blocks; events are delivered in emission order.
type Bus struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	notify chan struct{}
	out    chan Event

	stop     chan struct{}
	stopOnce sync.Once
}

// NewBus starts a bus. The consumer reads from Events until it is closed.
func NewBus() *Bus {
	b := &Bus{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
		stop:   make(chan struct{}),
	}
	go b.pump()
	return b
}

// Emit queues ev for delivery. Events emitted after Close are dropped.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
	b.wake()
}

// Events returns the consumer channel. It is closed after Close once every
// queued event has been delivered.
func (b *Bus) Events() <-chan Event {
	return b.out
}

// Close stops accepting events. Queued events are still delivered, so
// Events only closes once the consumer has read them; use Stop when nobody
// is reading any more.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.wake()
}

// Stop stops accepting events and drops the ones not yet delivered. Events
// is closed without waiting for a consumer.
func (b *Bus) Stop() {
	b.mu.Lock()
	b.closed = true
	b.queue = nil
	b.mu.Unlock()
	b.stopOnce.Do(func() { close(b.stop) })
}

func (b *Bus) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *Bus) pump() {
	defer close(b.out)
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			closed := b.closed
			b.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-b.notify:
			case <-b.stop:
			}
			continue
		}
		ev := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		b.mu.Unlock()
		select {
		case b.out <- ev:
		case <-b.stop:
			return
		}
	}
}
