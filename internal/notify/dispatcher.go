package notify

import (
	"context"
	"log"
	"sync"
)

// EventHandler handles a delivered event. A returned error is logged and
// never propagated back to the publisher.
type EventHandler func(context.Context, Event) error

type Dispatcher interface {
	Publish(event Event)
	Subscribe(eventType EventType, handler EventHandler)
	Close()
}

// asyncDispatcher decouples fan-out from the write path: Publish enqueues
// and returns, a single consumer goroutine invokes handlers. One consumer
// keeps events for any given conversation in publish order.
type asyncDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	queue     chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(buffer int) Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &asyncDispatcher{
		listeners: make(map[EventType][]EventHandler),
		queue:     make(chan Event, buffer),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *asyncDispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.mu.RLock()
		handlers := append([]EventHandler{}, d.listeners[event.Type]...)
		d.mu.RUnlock()

		for _, handler := range handlers {
			if err := handler(context.Background(), event); err != nil {
				log.Printf("notify: %s handler failed for conversation %s: %v", event.Type, event.ConversationID, err)
				incDropped(event.Type)
			}
		}
		incDelivered(event.Type)
	}
}

func (d *asyncDispatcher) Publish(event Event) {
	select {
	case d.queue <- event:
		incPublished(event.Type)
	default:
		// The queue is full; the session will catch up on its next poll.
		log.Printf("notify: queue full, dropping %s for conversation %s", event.Type, event.ConversationID)
		incDropped(event.Type)
	}
}

func (d *asyncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

func (d *asyncDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	<-d.done
}
