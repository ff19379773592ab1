package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

// Publisher delivers notification events to Redis Streams. Events are
// partitioned by target, so each recipient's notifications land on one
// stream in order; delivery is at-least-once and consumers deduplicate
// on event ID.
type Publisher struct {
	client     *redis.Client
	prefix     string
	partitions int
	maxLen     int64
	maxRetry   time.Duration
}

// Config controls stream naming and retention.
type Config struct {
	// Prefix names the stream family; partition N is "<prefix>:N".
	Prefix string
	// Partitions is the number of streams events are spread over.
	Partitions int
	// MaxLen caps each stream's length (approximate trimming).
	MaxLen int64
	// MaxRetry caps how long one publish retries before giving up.
	MaxRetry time.Duration
}

// NewPublisher creates a new Publisher.
func NewPublisher(client *redis.Client, cfg Config) *Publisher {
	if cfg.Prefix == "" {
		cfg.Prefix = "notifications"
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 8
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 100_000
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 30 * time.Second
	}
	return &Publisher{
		client:     client,
		prefix:     cfg.Prefix,
		partitions: cfg.Partitions,
		maxLen:     cfg.MaxLen,
		maxRetry:   cfg.MaxRetry,
	}
}

// Publish appends an event to its partition stream, retrying transient
// failures with exponential backoff.
func (p *Publisher) Publish(ctx context.Context, event *domain.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	stream := p.StreamFor(event.Target)
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id": event.ID,
			"type":     event.Type,
			"txn_id":   event.TransactionID,
			"target":   event.Target,
			"payload":  payload,
		},
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = p.maxRetry

	return backoff.Retry(func() error {
		return p.client.XAdd(ctx, args).Err()
	}, backoff.WithContext(b, ctx))
}

// StreamFor returns the partition stream a target maps to.
func (p *Publisher) StreamFor(target string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(target))

	return fmt.Sprintf("%s:%d", p.prefix, h.Sum32()%uint32(p.partitions))
}
