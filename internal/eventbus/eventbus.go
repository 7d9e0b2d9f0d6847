// Package eventbus fans out pipeline events over Redis pub/sub —
// observational only. The database remains the only coordination
// channel; nothing in the core reads these events back. They exist for
// dashboards/alerting to tail state transitions, proxy blocks, and AI
// rollbacks without polling the database. Grounded on the same
// go-redis usage seen in jordigilh-kubernaut's gateway integration
// tests.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/avitoscout/orchestrator/internal/logging"
)

const (
	ChannelArticulumTransitions = "avitoscout:articulum_transitions"
	ChannelProxyEvents          = "avitoscout:proxy_events"
	ChannelValidationEvents     = "avitoscout:validation_events"
)

type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type Bus struct {
	client *redis.Client
	log    *logging.Logger
}

func New(addr, password string, db int, log *logging.Logger) *Bus {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Bus{client: client, log: log.With("component", "EventBus")}
}

// Publish best-effort broadcasts an event; failures are logged and
// swallowed since nothing in the core depends on delivery.
func (b *Bus) Publish(ctx context.Context, channel string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Warn("failed to encode event", "channel", channel, "error", err)
		return
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		b.log.Warn("failed to publish event", "channel", channel, "error", err)
	}
}

func (b *Bus) PublishArticulumTransition(ctx context.Context, articulumID string, from, to string) {
	b.Publish(ctx, ChannelArticulumTransitions, Event{
		Type: "articulum_transition",
		Data: map[string]any{"articulum_id": articulumID, "from": from, "to": to},
	})
}

func (b *Bus) PublishProxyBlocked(ctx context.Context, proxyID string, reason string) {
	b.Publish(ctx, ChannelProxyEvents, Event{
		Type: "proxy_blocked",
		Data: map[string]any{"proxy_id": proxyID, "reason": reason},
	})
}

func (b *Bus) PublishAIRollback(ctx context.Context, articulumID string, reason string) {
	b.Publish(ctx, ChannelValidationEvents, Event{
		Type: "ai_rollback",
		Data: map[string]any{"articulum_id": articulumID, "reason": reason},
	})
}

func (b *Bus) Close() error {
	if err := b.client.Close(); err != nil {
		return fmt.Errorf("eventbus: close: %w", err)
	}
	return nil
}
