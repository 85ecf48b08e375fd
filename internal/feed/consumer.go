package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/availability-service/internal/availability"
)

const (
	readBatchSize = 64
	readBlock     = 5 * time.Second
)

// Consumer is a long-lived change feed worker. It reads the stream through a
// consumer group and acknowledges an entry only after the projector fully
// applied it, so the XACK is the checkpoint: a crash between apply and ack
// redelivers the entry, which the idempotent projector absorbs.
type Consumer struct {
	client    *redis.Client
	stream    string
	group     string
	name      string
	projector *availability.Projector
}

func NewConsumer(client *redis.Client, stream, group, name string, projector *availability.Projector) *Consumer {
	return &Consumer{
		client:    client,
		stream:    stream,
		group:     group,
		name:      name,
		projector: projector,
	}
}

// Run consumes until the context is cancelled. Entries that were delivered
// to this consumer but never acknowledged before the last shutdown are
// replayed first, then new entries are tailed.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	if err := c.drainPending(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, ">"},
			Count:    readBatchSize,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // block timed out with nothing to read
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("read change feed %s: %w", c.stream, err)
		}

		if err := c.processStreams(ctx, streams); err != nil {
			return err
		}
	}
}

// drainPending re-reads this consumer's unacknowledged entries from the last
// run. Reading from ID 0 returns the pending entry list without blocking.
func (c *Consumer) drainPending(ctx context.Context) error {
	for {
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, "0"},
			Count:    readBatchSize,
			Block:    -1, // history reads never block; keep BLOCK off the wire
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("read pending entries on %s: %w", c.stream, err)
		}

		total := 0
		for _, stream := range streams {
			total += len(stream.Messages)
		}
		if total == 0 {
			return nil
		}
		log.Printf("replaying %d unacknowledged change records on %s", total, c.stream)

		if err := c.processStreams(ctx, streams); err != nil {
			return err
		}
	}
}

func (c *Consumer) processStreams(ctx context.Context, streams []redis.XStream) error {
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if err := c.process(ctx, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// process applies one change record. Malformed records are logged, skipped,
// and acknowledged so they cannot wedge the feed. Read model failures are
// returned without acknowledging: the record stays pending and is
// redelivered on the next run.
func (c *Consumer) process(ctx context.Context, msg redis.XMessage) error {
	ev, err := DecodeEntry(msg.Values)
	if err != nil {
		log.Printf("skipping change record %s: %v", msg.ID, err)
		return c.ack(ctx, msg.ID)
	}

	if err := c.projector.Apply(ctx, ev); err != nil {
		return fmt.Errorf("apply change record %s: %w", msg.ID, err)
	}

	return c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		return fmt.Errorf("ack change record %s: %w", id, err)
	}
	return nil
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", c.group, c.stream, err)
	}
	return nil
}
