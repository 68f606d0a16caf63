// Package events carries domain events emitted after a ledger commit to
// in-process subscribers and, when configured, to Kafka.
package events

import (
	"context"
	"log"
	"sync"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Keyed events choose their own partition key.
type Keyed interface {
	EventKey() string
}

type Handler func(ctx context.Context, event any) error

// Dispatcher fans an event out to local subscribers and then forwards it to
// an optional downstream publisher. Subscriber failures are logged and never
// returned to the publishing caller.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	downstream  Publisher
	async       bool
	wg          sync.WaitGroup
}

func NewDispatcher(downstream Publisher, async bool) *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string][]Handler),
		downstream:  downstream,
		async:       async,
	}
}

func (d *Dispatcher) Subscribe(topic string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[topic] = append(d.subscribers[topic], handler)
}

func (d *Dispatcher) Publish(ctx context.Context, topic string, event any) error {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.subscribers[topic]...)
	d.mu.RUnlock()

	for _, h := range handlers {
		if d.async {
			d.wg.Add(1)
			go func(h Handler) {
				defer d.wg.Done()
				d.deliver(context.WithoutCancel(ctx), topic, h, event)
			}(h)
			continue
		}
		d.deliver(ctx, topic, h, event)
	}

	if d.downstream == nil {
		return nil
	}
	return d.downstream.Publish(ctx, topic, event)
}

func (d *Dispatcher) deliver(ctx context.Context, topic string, h Handler, event any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[EVENTS] Subscriber for %s panicked: %v", topic, r)
		}
	}()
	if err := h(ctx, event); err != nil {
		log.Printf("[EVENTS] Subscriber for %s failed: %v", topic, err)
	}
}

// Wait blocks until asynchronous deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
