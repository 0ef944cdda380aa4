// Package events mirrors batch outcomes into Redis for external consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blinkenlights/convertster/internal/converter"
	"github.com/redis/go-redis/v9"
)

// OutcomeEvent is the JSON payload published for every file outcome.
type OutcomeEvent struct {
	BatchID string    `json:"batch_id"`
	Path    string    `json:"path"`
	Output  string    `json:"output,omitempty"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

type Publisher struct {
	client redis.UniversalClient
	prefix string
}

func NewPublisher(client redis.UniversalClient, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

// Channel is the pub/sub channel every outcome is published on.
func (p *Publisher) Channel() string { return p.prefix + "outcomes" }

func (p *Publisher) batchKey(batchID string) string { return p.prefix + "batch:" + batchID }

func (p *Publisher) outcomesKey(batchID string) string {
	return p.batchKey(batchID) + ":outcomes"
}

// Publish records one outcome: it is published on Channel, appended to the batch's
// outcome list and counted in the batch hash.
func (p *Publisher) Publish(ctx context.Context, batchID string, o converter.Outcome) error {
	ev := OutcomeEvent{
		BatchID: batchID,
		Path:    o.Path,
		Output:  o.Output,
		Status:  o.Status.String(),
		At:      time.Now().UTC(),
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, p.outcomesKey(batchID), payload)
		pipe.HIncrBy(ctx, p.batchKey(batchID), ev.Status, 1)
		pipe.Publish(ctx, p.Channel(), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish outcome for %s: %w", o.Path, err)
	}
	return nil
}

// Finish writes the final summary of a batch into its hash.
func (p *Publisher) Finish(ctx context.Context, batchID string, s converter.Summary) error {
	err := p.client.HSet(ctx, p.batchKey(batchID),
		"total", s.Total,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"cancelled", s.Cancelled,
		"finished_at", time.Now().UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("finish batch %s: %w", batchID, err)
	}
	return nil
}
