package sse

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EventNumberingAdvanced = "numbering.advanced"

	numberingChannelPrefix  = "folioops:numbering:"
	numberingChannelPattern = numberingChannelPrefix + "*"
)

// NumberingEvent payload of numbering.advanced.
type NumberingEvent struct {
	TenantID   string              `json:"tenant_id"`
	Kind       entity.DocumentKind `json:"kind"`
	NextNumber int64               `json:"next_number"`
	Preview    string              `json:"preview"`
	At         time.Time           `json:"at"`
}

func (e NumberingEvent) sseEvent() (Event, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Event{}, err
	}
	return Event{EventType: EventNumberingAdvanced, Data: string(data)}, nil
}

// HubNotifier delivers numbering events to this instance's clients only.
type HubNotifier struct {
	hub    *Hub
	logger *zap.Logger
}

func NewHubNotifier(hub *Hub, logger *zap.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

func (n *HubNotifier) NumberingAdvanced(ctx context.Context, tenantID string, kind entity.DocumentKind, nextNumber int64, preview string) {
	evt, err := NumberingEvent{TenantID: tenantID, Kind: kind, NextNumber: nextNumber, Preview: preview, At: time.Now()}.sseEvent()
	if err != nil {
		n.logger.Error("encode numbering event", zap.Error(err))
		return
	}
	n.hub.Publish(tenantID, evt)
}

// RedisNotifier publishes numbering events on folioops:numbering:<tenant> so
// that every API instance can forward them to its own clients.
type RedisNotifier struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisNotifier(rdb *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, logger: logger}
}

func (n *RedisNotifier) NumberingAdvanced(ctx context.Context, tenantID string, kind entity.DocumentKind, nextNumber int64, preview string) {
	payload, err := json.Marshal(NumberingEvent{TenantID: tenantID, Kind: kind, NextNumber: nextNumber, Preview: preview, At: time.Now()})
	if err != nil {
		n.logger.Error("encode numbering event", zap.Error(err))
		return
	}
	if err := n.rdb.Publish(ctx, numberingChannelPrefix+tenantID, payload).Err(); err != nil {
		n.logger.Warn("publish numbering event failed",
			zap.String("tenant_id", tenantID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

// Relay forwards numbering events from Redis into the local hub.
type Relay struct {
	rdb    *redis.Client
	hub    *Hub
	logger *zap.Logger
}

func NewRelay(rdb *redis.Client, hub *Hub, logger *zap.Logger) *Relay {
	return &Relay{rdb: rdb, hub: hub, logger: logger}
}

// Start subscribes and returns once the subscription is confirmed. Messages
// are forwarded until ctx is cancelled or stop is called.
func (r *Relay) Start(ctx context.Context) (stop func(), err error) {
	pubsub := r.rdb.PSubscribe(ctx, numberingChannelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.forward(ctx, pubsub.Channel())
	}()

	r.logger.Info("numbering relay subscribed", zap.String("pattern", numberingChannelPattern))
	return func() {
		cancel()
		pubsub.Close()
		<-done
	}, nil
}

func (r *Relay) forward(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload NumberingEvent
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				r.logger.Warn("drop malformed numbering event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			tenantID := strings.TrimPrefix(msg.Channel, numberingChannelPrefix)
			if payload.TenantID != tenantID {
				r.logger.Warn("drop numbering event with mismatched tenant", zap.String("channel", msg.Channel))
				continue
			}
			evt, err := payload.sseEvent()
			if err != nil {
				continue
			}
			r.hub.Publish(tenantID, evt)
		}
	}
}
