package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kcwalters0610/folioops/internal/crm/entity"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newClient(hub *Hub, id, tenantID string) *Client {
	c := &Client{ID: id, TenantID: tenantID, UserID: "u-" + id, Events: make(chan Event, 4)}
	hub.Register(c)
	return c
}

func waitEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case evt := <-c.Events:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s: no event received", c.ID)
	}
	return Event{}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case evt := <-c.Events:
		t.Fatalf("client %s: unexpected event %+v", c.ID, evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_PublishIsTenantScoped(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := newClient(hub, "a", "tenant-a")
	b := newClient(hub, "b", "tenant-b")

	hub.Publish("tenant-a", Event{EventType: "x", Data: "{}"})

	if evt := waitEvent(t, a); evt.EventType != "x" {
		t.Fatalf("unexpected event %+v", evt)
	}
	assertNoEvent(t, b)

	hub.Unregister("a")
	hub.Unregister("a")
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if _, ok := <-a.Events; ok {
		t.Fatal("unregistered client channel should be closed")
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := &Client{ID: "slow", TenantID: "t", Events: make(chan Event, 1)}
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish("t", Event{EventType: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full client buffer")
	}
}

func TestHubNotifier(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newClient(hub, "a", "tenant-a")

	NewHubNotifier(hub, zap.NewNop()).NumberingAdvanced(context.Background(), "tenant-a", entity.KindInvoice, 8, "INV-2024-0008")

	evt := waitEvent(t, c)
	if evt.EventType != EventNumberingAdvanced {
		t.Fatalf("expected %s, got %s", EventNumberingAdvanced, evt.EventType)
	}
	var payload NumberingEvent
	if err := json.Unmarshal([]byte(evt.Data), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Kind != entity.KindInvoice || payload.NextNumber != 8 || payload.Preview != "INV-2024-0008" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestRedisNotifierRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hub := NewHub(zap.NewNop())
	a := newClient(hub, "a", "tenant-a")
	b := newClient(hub, "b", "tenant-b")

	ctx := context.Background()
	stop, err := NewRelay(rdb, hub, zap.NewNop()).Start(ctx)
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer stop()

	NewRedisNotifier(rdb, zap.NewNop()).NumberingAdvanced(ctx, "tenant-a", entity.KindWorkOrder, 43, "WO-2024-0043")

	evt := waitEvent(t, a)
	var payload NumberingEvent
	if err := json.Unmarshal([]byte(evt.Data), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TenantID != "tenant-a" || payload.NextNumber != 43 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	assertNoEvent(t, b)
}

func TestRelay_DropsMismatchedTenant(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hub := NewHub(zap.NewNop())
	b := newClient(hub, "b", "tenant-b")

	ctx := context.Background()
	stop, err := NewRelay(rdb, hub, zap.NewNop()).Start(ctx)
	if err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer stop()

	spoofed, _ := json.Marshal(NumberingEvent{TenantID: "tenant-a", Kind: entity.KindEstimate, NextNumber: 2})
	if err := rdb.Publish(ctx, numberingChannelPrefix+"tenant-b", spoofed).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := rdb.Publish(ctx, numberingChannelPrefix+"tenant-b", "not json").Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	assertNoEvent(t, b)
}
