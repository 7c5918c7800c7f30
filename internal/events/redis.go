package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStreamMaxLen   = 10000
	defaultPublishTimeout = 2 * time.Second
)

var errMissingRedisClient = errors.New("events: redis client required")

// RedisStreamPublisher appends events to a Redis stream.
type RedisStreamPublisher struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	timeout time.Duration
}

// NewRedisStreamPublisher builds a publisher for the named stream.
func NewRedisStreamPublisher(client *redis.Client, stream string) (*RedisStreamPublisher, error) {
	if client == nil {
		return nil, errMissingRedisClient
	}
	name := strings.TrimSpace(stream)
	if name == "" {
		name = "civic.proposals.events"
	}
	return &RedisStreamPublisher{
		client:  client,
		stream:  name,
		maxLen:  defaultStreamMaxLen,
		timeout: defaultPublishTimeout,
	}, nil
}

// Publish issues an approximate-trimmed XADD for the event. A slow or
// unreachable Redis costs the caller at most the publish timeout.
func (p *RedisStreamPublisher) Publish(ctx context.Context, event Event) error {
	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.XAdd(publishCtx, streamArgs(p.stream, p.maxLen, event)).Err()
}

func streamArgs(stream string, maxLen int64, event Event) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":        string(event.Type),
			"proposal_id": event.ProposalID,
			"time":        event.Timestamp.Unix(),
		},
	}
}
