package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream names.
const (
	StreamScrapes   = "kitscout.scrapes"
	StreamCampaigns = "kitscout.campaigns"
)

// Event types.
const (
	EventScrapeCompleted   = "scrape.completed"
	EventCampaignProgress  = "campaign.progress"
	EventCampaignCompleted = "campaign.completed"
)

// DefaultMaxLen caps each stream (approximately).
const DefaultMaxLen = 10000

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, payload any) error
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		maxLen: DefaultMaxLen,
	}
}

// Publish appends one entry with fields type, data (JSON) and timestamp.
func (p *RedisStreamPublisher) Publish(ctx context.Context, stream, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      eventType,
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing %s to %s: %w", eventType, stream, err)
	}
	return nil
}

// Nop discards every event. It stands in when Redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }
