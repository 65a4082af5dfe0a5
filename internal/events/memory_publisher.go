package events

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/NomadCrew/nomad-crew-planner/types"
)

// MemoryPublisher implements types.EventPublisher inside the process. It
// backs the memory realtime provider and tests. Unlike Redis it never drops
// the first publish after Subscribe returns.
type MemoryPublisher struct {
	mu         sync.RWMutex
	subs       map[string]map[string]*memorySub // tripID -> subscriberID
	bufferSize int
	closed     bool
}

type memorySub struct {
	ch      chan types.Event
	filters []types.EventType
}

// NewMemoryPublisher creates an in-process publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{
		subs:       make(map[string]map[string]*memorySub),
		bufferSize: DefaultConfig().EventBufferSize,
	}
}

// Publish fans the event out to the trip's subscribers. Slow subscribers
// lose events instead of blocking the publisher.
func (m *MemoryPublisher) Publish(ctx context.Context, tripID string, event types.Event) error {
	event = withDefaults(event, tripID)
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("publisher is closed")
	}

	for _, sub := range m.subs[tripID] {
		if len(sub.filters) > 0 && !slices.Contains(sub.filters, event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

func (m *MemoryPublisher) Subscribe(ctx context.Context, tripID string, subscriberID string, filters ...types.EventType) (<-chan types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("publisher is closed")
	}
	if m.subs[tripID] == nil {
		m.subs[tripID] = make(map[string]*memorySub)
	}
	if _, exists := m.subs[tripID][subscriberID]; exists {
		return nil, fmt.Errorf("subscription already exists for trip %s and subscriber %s", tripID, subscriberID)
	}

	sub := &memorySub{ch: make(chan types.Event, m.bufferSize), filters: filters}
	m.subs[tripID][subscriberID] = sub
	return sub.ch, nil
}

func (m *MemoryPublisher) Unsubscribe(ctx context.Context, tripID string, subscriberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, exists := m.subs[tripID][subscriberID]
	if !exists {
		return fmt.Errorf("no subscription found for trip %s and subscriber %s", tripID, subscriberID)
	}
	close(sub.ch)
	delete(m.subs[tripID], subscriberID)
	if len(m.subs[tripID]) == 0 {
		delete(m.subs, tripID)
	}
	return nil
}

// Subscribers returns the number of live subscriptions on a trip.
func (m *MemoryPublisher) Subscribers(tripID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[tripID])
}

// Close closes every subscription channel.
func (m *MemoryPublisher) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, subs := range m.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	m.subs = make(map[string]map[string]*memorySub)
	m.closed = true
}
