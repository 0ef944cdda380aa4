package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/blinkenlights/convertster/internal/converter"
	"github.com/redis/go-redis/v9"
)

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPublisher(client, "test:"), client
}

func TestPublishRecordsOutcome(t *testing.T) {
	pub, client := newTestPublisher(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, pub.Channel())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	outcomes := []converter.Outcome{
		{Path: "/in/a.bmp", Output: "/in/a.png", Status: converter.StatusSucceeded},
		{Path: "/in/b.bmp", Output: "/in/b.png", Status: converter.StatusFailed, Err: errors.New("decode failed")},
		{Path: "/in/c.bmp", Output: "/in/c.png", Status: converter.StatusSucceeded},
	}
	for _, o := range outcomes {
		if err := pub.Publish(ctx, "b1", o); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	items, err := client.LRange(ctx, "test:batch:b1:outcomes", 0, -1).Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 list entries, got %d", len(items))
	}
	var ev OutcomeEvent
	if err := json.Unmarshal([]byte(items[1]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.BatchID != "b1" || ev.Status != "failed" || ev.Error != "decode failed" {
		t.Errorf("unexpected event %+v", ev)
	}

	counts, err := client.HGetAll(ctx, "test:batch:b1").Result()
	if err != nil {
		t.Fatal(err)
	}
	if counts["succeeded"] != "2" || counts["failed"] != "1" {
		t.Errorf("unexpected counts %v", counts)
	}

	msgCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(msgCtx)
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.Path != "/in/a.bmp" {
		t.Errorf("unexpected first message %q (%v)", msg.Payload, err)
	}
}

func TestFinishWritesSummary(t *testing.T) {
	pub, client := newTestPublisher(t)
	ctx := context.Background()

	s := converter.Summary{Total: 4, Succeeded: 2, Failed: 1, Skipped: 1, Cancelled: true}
	if err := pub.Finish(ctx, "b2", s); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	h, err := client.HGetAll(ctx, "test:batch:b2").Result()
	if err != nil {
		t.Fatal(err)
	}
	if h["total"] != "4" || h["skipped"] != "1" || h["cancelled"] != "1" || h["finished_at"] == "" {
		t.Errorf("unexpected hash %v", h)
	}
}

func TestPublishFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	pub := NewPublisher(client, "test:")
	mr.Close()

	err := pub.Publish(context.Background(), "b3", converter.Outcome{Path: "x.bmp", Status: converter.StatusSkipped})
	if err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}
