// Package eventbus implements the engine's pub/sub fan-out (spec.md
// §6), grounded on the teacher's internal/events/bus.go but replacing
// its package-level global "broadcastXxx" callback variables — the
// callback-based event broadcast anti-pattern flagged in Design Notes,
// spec.md §9 — with explicit Subscription handles backed by Redis
// pub/sub, so subscribers can be added, filtered and torn down without
// touching shared mutable package state.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is the envelope published for trader-visible occurrences.
// The engine publishes position_opened and position_closed, and the
// stream sends heartbeats; no event is published for decisions,
// weight adjustments or daily reports. Type is a short tag, Data
// carries the typed payload already marshaled by the publisher.
type Event struct {
	TraderID  uuid.UUID       `json:"traderId"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

const channel = "trader-engine:events"

// Bus fans Events out to Subscriptions over Redis pub/sub, so multiple
// engine/API processes can share one event stream.
type Bus struct {
	client *redis.Client

	mu            sync.Mutex
	subscriptions map[uuid.UUID]*Subscription

	heartbeatInterval    time.Duration
	backpressureWindow   time.Duration
}

// Config carries the per-deployment tunables (spec.md §6 engine
// config: heartbeat_interval, subscriber_backpressure_window).
type Config struct {
	HeartbeatInterval            time.Duration
	SubscriberBackpressureWindow time.Duration
}

func New(client *redis.Client, cfg Config) *Bus {
	b := &Bus{
		client:                     client,
		subscriptions:              make(map[uuid.UUID]*Subscription),
		heartbeatInterval:          cfg.HeartbeatInterval,
		backpressureWindow:         cfg.SubscriberBackpressureWindow,
	}
	return b
}

// Subscription is a live handle returned by Subscribe. Its Events
// channel delivers filtered Events until Close is called or the
// subscriber is dropped for falling behind (at-most-once delivery,
// spec.md §6).
type Subscription struct {
	id       uuid.UUID
	Events   chan Event
	traderIDs map[uuid.UUID]bool // empty set means "all traders"
	bus      *Bus
	cancel   context.CancelFunc
}

// Close unsubscribes and releases the Subscription's resources. Safe
// to call more than once.
func (s *Subscription) Close() {
	s.cancel()
	s.bus.mu.Lock()
	delete(s.bus.subscriptions, s.id)
	s.bus.mu.Unlock()
}

// Subscribe starts a Redis pub/sub listener scoped to traderIDs (nil or
// empty means every trader). The returned Subscription must be closed
// by the caller.
func (b *Bus) Subscribe(ctx context.Context, traderIDs []uuid.UUID) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	filter := make(map[uuid.UUID]bool, len(traderIDs))
	for _, id := range traderIDs {
		filter[id] = true
	}

	sub := &Subscription{
		id:        uuid.New(),
		Events:    make(chan Event, 64),
		traderIDs: filter,
		bus:       b,
		cancel:    cancel,
	}

	b.mu.Lock()
	b.subscriptions[sub.id] = sub
	b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, channel)
	go b.pump(ctx, pubsub, sub)
	go b.heartbeat(ctx, sub)

	return sub
}

// pump reads from the Redis channel and forwards matching events,
// dropping (not blocking) a subscriber that does not drain within
// backpressureWindow — bounded backpressure per spec.md §6.
func (b *Bus) pump(ctx context.Context, pubsub *redis.PubSub, sub *Subscription) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			if len(sub.traderIDs) > 0 && !sub.traderIDs[ev.TraderID] {
				continue
			}
			select {
			case sub.Events <- ev:
			case <-time.After(b.backpressureWindow):
				sub.Close()
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// heartbeat emits a synthetic "heartbeat" Event on the subscription's
// own channel so idle SSE connections stay alive through
// intermediating proxies (spec.md §6).
func (b *Bus) heartbeat(ctx context.Context, sub *Subscription) {
	ticker := time.NewTicker(b.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case sub.Events <- Event{Type: "heartbeat", Timestamp: time.Now()}:
			default:
			}
		}
	}
}

// Publish marshals data and broadcasts one Event over Redis pub/sub to
// every process's subscribers.
func (b *Bus) Publish(ctx context.Context, traderID uuid.UUID, eventType string, data interface{}, now time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event data: %w", err)
	}
	ev := Event{TraderID: traderID, Type: eventType, Data: raw, Timestamp: now}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventbus: marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("eventbus: publish: %w", err)
	}
	return nil
}
