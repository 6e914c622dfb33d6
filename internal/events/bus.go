package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Publisher sends a message to interested listeners.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Handler reacts to one message.
type Handler func(ctx context.Context, msg Message) error

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg Message) error

func (f PublisherFunc) Publish(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Discard drops every message.
var Discard Publisher = PublisherFunc(func(context.Context, Message) error { return nil })

// Bus is an in-process publish/subscribe hub. Handlers run synchronously on
// the publishing goroutine in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID int
	logger *slog.Logger
}

type subscription struct {
	id      int
	kind    Kind // empty matches every kind
	handler Handler
}

var _ Publisher = (*Bus)(nil)

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers h for kind and returns a function that removes it.
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: kind, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers h for every kind.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.Subscribe("", h)
}

// Publish delivers msg to every matching handler. All handlers run even if
// one fails; their errors are joined.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kind == "" || s.kind == msg.Kind {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, s := range matched {
		if err := s.handler(ctx, msg); err != nil {
			b.logger.WarnContext(ctx, "Event handler failed",
				"message_kind", msg.Kind,
				"message_id", msg.ID,
				"error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish %s: %w", msg.Kind, errors.Join(errs...))
	}
	return nil
}

// Fanout publishes to every publisher in order and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
