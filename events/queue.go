package events

import "errors"

// ErrQueueFull is returned by a QueueDeliverer whose buffer is exhausted.
// The hub logs it and moves on; the slow connection misses that event.
var ErrQueueFull = errors.New("subscriber queue full")

// QueueDeliverer buffers events for a single connection. Deliver never
// blocks the fan-out: a full queue drops the event instead. The connection
// adapter drains Events from its writer goroutine.
type QueueDeliverer struct {
	ch chan Event
}

// NewQueueDeliverer creates a queue with the given depth.
func NewQueueDeliverer(depth int) *QueueDeliverer {
	if depth <= 0 {
		depth = 1
	}
	return &QueueDeliverer{ch: make(chan Event, depth)}
}

// Deliver implements Deliverer.
func (d *QueueDeliverer) Deliver(e Event) error {
	select {
	case d.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Events returns the drain side of the queue.
func (d *QueueDeliverer) Events() <-chan Event {
	return d.ch
}
