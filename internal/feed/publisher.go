package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/availability-service/internal/availability"
)

// entryDataField is the stream entry field the JSON envelope travels in.
const entryDataField = "data"

// RedisPublisher appends one change record per committed event to the
// stream. XADD preserves arrival order, which for a single writer per user
// matches version order.
type RedisPublisher struct {
	client *redis.Client
	stream string
	table  string
}

func NewRedisPublisher(client *redis.Client, stream, table string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, table: table}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev availability.Event) error {
	data, err := json.Marshal(NewEnvelope(p.table, ev))
	if err != nil {
		return fmt.Errorf("encode change record: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{entryDataField: string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to %s: %w", p.stream, err)
	}
	return nil
}
