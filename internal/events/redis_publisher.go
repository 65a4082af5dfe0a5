package events

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/internal/metrics"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds configuration for RedisPublisher
type Config struct {
	PublishTimeout   time.Duration
	SubscribeTimeout time.Duration
	EventBufferSize  int
}

// DefaultConfig returns default configuration values
func DefaultConfig() Config {
	return Config{
		PublishTimeout:   5 * time.Second,
		SubscribeTimeout: 10 * time.Second,
		EventBufferSize:  100,
	}
}

// ChannelName is the pub/sub channel carrying a trip's events.
func ChannelName(tripID string) string {
	return "trip:" + tripID
}

func subscriptionKey(tripID, subscriberID string) string {
	return tripID + ":" + subscriberID
}

// RedisPublisher implements types.EventPublisher using Redis Pub/Sub
type RedisPublisher struct {
	rdb     redis.UniversalClient
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
	config  Config
	mu      sync.RWMutex
	subs    map[string]*subscription
	wg      sync.WaitGroup
}

type subscription struct {
	pubsub    *redis.PubSub
	cancelCtx context.CancelFunc
	closeOnce sync.Once
}

func (s *subscription) close(log *zap.SugaredLogger, subKey string) {
	s.closeOnce.Do(func() {
		if err := s.pubsub.Close(); err != nil {
			log.Errorw("Error closing pubsub", "error", err, "subKey", subKey)
		}
	})
}

// NewRedisPublisher creates a new RedisPublisher instance
func NewRedisPublisher(rdb redis.UniversalClient, cfg ...Config) *RedisPublisher {
	config := DefaultConfig()
	if len(cfg) > 0 {
		config = cfg[0]
	}

	return &RedisPublisher{
		rdb:     rdb,
		log:     logger.GetLogger().Named("events"),
		metrics: metrics.Get(),
		config:  config,
		subs:    make(map[string]*subscription),
	}
}

// Publish publishes an event on the trip's channel
func (p *RedisPublisher) Publish(ctx context.Context, tripID string, event types.Event) error {
	start := time.Now()
	defer func() {
		p.metrics.PublishLatency.Observe(time.Since(start).Seconds())
	}()

	event = withDefaults(event, tripID)
	if err := event.Validate(); err != nil {
		p.metrics.EventErrors.WithLabelValues("publish", "validation").Inc()
		return fmt.Errorf("invalid event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.metrics.EventErrors.WithLabelValues("publish", "marshal").Inc()
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	if err := p.rdb.Publish(ctx, ChannelName(tripID), data).Err(); err != nil {
		p.metrics.EventErrors.WithLabelValues("publish", "redis").Inc()
		return fmt.Errorf("redis publish: %w", err)
	}

	p.metrics.Events.WithLabelValues("publish", string(event.Type)).Inc()
	return nil
}

// Subscribe listens to a trip's channel. subscriberID must be unique per
// trip; the returned channel is closed on Unsubscribe or Shutdown.
func (p *RedisPublisher) Subscribe(ctx context.Context, tripID string, subscriberID string, filters ...types.EventType) (<-chan types.Event, error) {
	subKey := subscriptionKey(tripID, subscriberID)

	p.mu.Lock()
	if _, exists := p.subs[subKey]; exists {
		p.mu.Unlock()
		p.metrics.EventErrors.WithLabelValues("subscribe", "duplicate").Inc()
		return nil, fmt.Errorf("subscription already exists for trip %s and subscriber %s", tripID, subscriberID)
	}

	pubsub := p.rdb.Subscribe(ctx, ChannelName(tripID))
	subCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{pubsub: pubsub, cancelCtx: cancel}
	p.subs[subKey] = sub
	p.mu.Unlock()

	// Wait for the SUBSCRIBE confirmation so no publish after this call is missed.
	recvCtx, recvCancel := context.WithTimeout(ctx, p.config.SubscribeTimeout)
	defer recvCancel()
	if _, err := pubsub.Receive(recvCtx); err != nil {
		p.metrics.EventErrors.WithLabelValues("subscribe", "redis").Inc()
		p.mu.Lock()
		delete(p.subs, subKey)
		p.mu.Unlock()
		cancel()
		sub.close(p.log, subKey)
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	p.metrics.ActiveSubscribers.Inc()
	events := make(chan types.Event, p.config.EventBufferSize)

	p.wg.Add(1)
	go p.processMessages(subCtx, sub, events, filters, subKey)

	return events, nil
}

// processMessages handles incoming Redis messages
func (p *RedisPublisher) processMessages(ctx context.Context, sub *subscription, events chan<- types.Event, filters []types.EventType, subKey string) {
	defer p.wg.Done()
	defer func() {
		sub.close(p.log, subKey)
		close(events)
		p.metrics.ActiveSubscribers.Dec()
		p.log.Debugw("Subscription closed", "subKey", subKey)
	}()

	ch := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event types.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				p.metrics.EventErrors.WithLabelValues("process", "unmarshal").Inc()
				p.log.Errorw("Failed to unmarshal event", "error", err, "subKey", subKey)
				continue
			}

			if len(filters) > 0 && !slices.Contains(filters, event.Type) {
				continue
			}

			// Drop rather than block the pub/sub reader.
			select {
			case events <- event:
				p.metrics.Events.WithLabelValues("receive", string(event.Type)).Inc()
			default:
				p.metrics.EventErrors.WithLabelValues("process", "channel_full").Inc()
				p.log.Warnw("Dropped event due to full channel", "subKey", subKey, "eventType", event.Type)
			}
		}
	}
}

// Unsubscribe removes a subscription
func (p *RedisPublisher) Unsubscribe(ctx context.Context, tripID string, subscriberID string) error {
	subKey := subscriptionKey(tripID, subscriberID)

	p.mu.Lock()
	sub, exists := p.subs[subKey]
	if !exists {
		p.mu.Unlock()
		return fmt.Errorf("no subscription found for trip %s and subscriber %s", tripID, subscriberID)
	}
	delete(p.subs, subKey)
	p.mu.Unlock()

	sub.cancelCtx()
	sub.close(p.log, subKey)
	return nil
}

// Shutdown gracefully shuts down the publisher
func (p *RedisPublisher) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	localSubs := p.subs
	p.subs = make(map[string]*subscription)
	p.mu.Unlock()

	p.log.Infow("Shutting down RedisPublisher, cancelling subscriptions", "count", len(localSubs))
	for _, sub := range localSubs {
		sub.cancelCtx()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Infow("RedisPublisher shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func withDefaults(event types.Event, tripID string) types.Event {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.TripID == "" {
		event.TripID = tripID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	return event
}
