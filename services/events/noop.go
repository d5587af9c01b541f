package eventsvc

import (
	"context"
	"sync"

	"github.com/NoheilaRamdani/sae401/core"
)

// NoopPublisher drops events. It is used when no broker is configured.
type NoopPublisher struct{}

var _ core.EventPublisher = NoopPublisher{}

func (NoopPublisher) Publish(context.Context, core.Event) error { return nil }

// RecorderPublisher keeps the published events in memory.
type RecorderPublisher struct {
	mu     sync.Mutex
	events []core.Event
}

var _ core.EventPublisher = (*RecorderPublisher)(nil)

func (r *RecorderPublisher) Publish(_ context.Context, evt core.Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

func (r *RecorderPublisher) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

// Types returns the type of every published event, in order.
func (r *RecorderPublisher) Types() []string {
	types := make([]string, 0)
	for _, evt := range r.Events() {
		types = append(types, evt.Type)
	}
	return types
}

// New connects to RabbitMQ when a broker URL is configured, and falls back to NoopPublisher.
func New(conf *core.Config, logger core.Logger) (core.EventPublisher, func() error, error) {
	if conf.RabbitMQ.URL == "" {
		return NoopPublisher{}, func() error { return nil }, nil
	}
	p, err := NewRabbitMQPublisher(conf, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
