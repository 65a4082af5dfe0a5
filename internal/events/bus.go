package events

import (
	"fmt"
	"sync"

	"github.com/NomadCrew/nomad-crew-planner/internal/metrics"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"go.uber.org/zap"
)

// Subscription detaches a handler from the component it was registered on.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() { f() }

// Subscriptions collects subscriptions so they can be released together when
// the owner is replaced.
type Subscriptions struct {
	mu   sync.Mutex
	subs []Subscription
}

func (s *Subscriptions) Add(sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

// UnsubscribeAll releases every collected subscription.
func (s *Subscriptions) UnsubscribeAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Bus is a typed, synchronous, in-process publish/subscribe channel.
// Handlers run on the publisher's goroutine in registration order.
type Bus[T any] struct {
	name    string
	log     *zap.SugaredLogger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	nextID   uint64
	handlers []busHandler[T]
	closed   bool
}

type busHandler[T any] struct {
	id uint64
	fn func(T)
}

// NewBus creates a bus. name labels logs and metrics.
func NewBus[T any](name string) *Bus[T] {
	return &Bus[T]{
		name:    name,
		log:     logger.GetLogger().Named("bus"),
		metrics: metrics.Get(),
	}
}

// Subscribe registers fn. The returned subscription is idempotent.
func (b *Bus[T]) Subscribe(fn func(T)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return SubscriptionFunc(func() {})
	}

	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, busHandler[T]{id: id, fn: fn})

	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(func() { b.remove(id) })
	})
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Publish delivers v to every handler registered at the time of the call.
// A panicking handler is logged and does not stop delivery to the others.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]busHandler[T], len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	b.metrics.BusEvents.WithLabelValues(b.name).Inc()
	for _, h := range handlers {
		b.deliver(h, v)
	}
}

func (b *Bus[T]) deliver(h busHandler[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.BusHandlerPanics.WithLabelValues(b.name).Inc()
			b.log.Errorw("Bus handler panicked",
				"bus", b.name,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	h.fn(v)
}

// Len returns the number of registered handlers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Close drops every handler; later publishes and subscriptions are no-ops.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = nil
}
