package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	bridgeChannelPrefix = "renohub:events:"
	bridgeQueueSize     = 256
)

// bridgeEnvelope is the JSON payload published to Redis for every local
// event. Origin identifies the publishing instance so an event is never
// re-emitted on the instance that produced it.
type bridgeEnvelope struct {
	Origin string         `json:"origin"`
	Event  string         `json:"event"`
	Topic  string         `json:"topic"`
	Data   map[string]any `json:"data,omitempty"`
}

// BridgedEvent is an event received from another instance via Redis. It is
// re-emitted locally so WebSocket subscribers on this instance see it, but it
// is never published back to Redis.
type BridgedEvent struct {
	Name  string
	Topic string
	Data  map[string]any
}

func (e BridgedEvent) EventName() string  { return e.Name }
func (e BridgedEvent) EventTopic() string { return e.Topic }

// MarshalJSON flattens to the inner event payload so WS clients see the same
// shape regardless of which instance handled the original send.
func (e BridgedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Data)
}

// RedisBridge mirrors local events to Redis pub/sub and re-emits events
// published by other instances, so per-channel and per-user topics fan out
// across the whole deployment. Publishing is fire-and-forget: a Redis outage
// degrades to single-instance fan-out, it never fails a send.
type RedisBridge struct {
	client     *redis.Client
	emitter    *Emitter
	instanceID string
	logger     *slog.Logger

	queue       chan bridgeEnvelope
	unsubscribe func()
	pubsub      *redis.PubSub
}

// NewRedisBridge creates a bridge over the given Redis connection and the
// global emitter.
func NewRedisBridge(addr, password string, db int, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		emitter:    Global(),
		instanceID: uuid.New().String(),
		logger:     logger,
		queue:      make(chan bridgeEnvelope, bridgeQueueSize),
	}
}

// Start wires the bridge in both directions until ctx is cancelled.
func (b *RedisBridge) Start(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return err
	}

	// Outbound: every locally-produced event goes to Redis.
	b.wireOutbound()
	go b.publishLoop(ctx)

	// Inbound: events from other instances re-emit locally.
	b.pubsub = b.client.PSubscribe(ctx, bridgeChannelPrefix+"*")
	go func() {
		for msg := range b.pubsub.Channel() {
			var env bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("Dropping malformed bridged event", "error", err)
				continue
			}
			if env.Origin == b.instanceID {
				continue
			}
			b.emitter.Emit(BridgedEvent{Name: env.Event, Topic: env.Topic, Data: env.Data})
		}
	}()

	b.logger.Info("Redis event bridge started", "instanceID", b.instanceID)
	return nil
}

// wireOutbound mirrors locally-produced events into the publish queue.
// Listeners run inside Emit on the sender's goroutine, so they only enqueue;
// the network write happens in publishLoop.
func (b *RedisBridge) wireOutbound() {
	b.unsubscribe = b.emitter.OnAny(func(ev Event) {
		if _, bridged := ev.(BridgedEvent); bridged {
			return
		}
		env := bridgeEnvelope{
			Origin: b.instanceID,
			Event:  ev.EventName(),
			Topic:  ev.EventTopic(),
			Data:   eventToData(ev),
		}
		select {
		case b.queue <- env:
		default:
			// Drop if the queue is full; a stalled Redis must not block Emit.
			b.logger.Warn("Redis publish queue full, dropping event", "topic", env.Topic)
		}
	})
}

func (b *RedisBridge) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-b.queue:
			payload, err := json.Marshal(env)
			if err != nil {
				continue
			}
			if err := b.client.Publish(ctx, bridgeChannelPrefix+env.Topic, payload).Err(); err != nil {
				b.logger.Warn("Redis publish failed", "topic", env.Topic, "error", err)
			}
		}
	}
}

// Close stops mirroring and releases the Redis connection.
func (b *RedisBridge) Close() error {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
	return b.client.Close()
}
