package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-sla/internal/sla"
)

const (
	slaStatusKey    = "sla:status"
	slaDeadlinesKey = "sla:deadlines"
)

// SLAStatusCache mirrors the SLA status of unanswered tickets for cheap
// dashboard reads. Postgres stays the source of truth.
type SLAStatusCache interface {
	Set(ctx context.Context, ticketID string, status sla.Status, deadline time.Time) error
	Delete(ctx context.Context, ticketID string) error
	Counts(ctx context.Context) (map[sla.Status]int64, error)
	// DueBefore lists tickets whose deadline is at or before t, soonest first.
	DueBefore(ctx context.Context, t time.Time, limit int64) ([]string, error)
}

type redisSLAStatusCache struct {
	client    *redis.Client
	statusKey string
	dueKey    string
}

// NewSLAStatusCache builds the Redis backed mirror. prefix namespaces the
// keys; an empty prefix uses the bare key names.
func NewSLAStatusCache(client *redis.Client, prefix string) SLAStatusCache {
	return &redisSLAStatusCache{
		client:    client,
		statusKey: prefix + slaStatusKey,
		dueKey:    prefix + slaDeadlinesKey,
	}
}

func (c *redisSLAStatusCache) Set(ctx context.Context, ticketID string, status sla.Status, deadline time.Time) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.statusKey, ticketID, string(status))
		pipe.ZAdd(ctx, c.dueKey, redis.Z{Score: float64(deadline.Unix()), Member: ticketID})
		return nil
	})
	return err
}

func (c *redisSLAStatusCache) Delete(ctx context.Context, ticketID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, c.statusKey, ticketID)
		pipe.ZRem(ctx, c.dueKey, ticketID)
		return nil
	})
	return err
}

func (c *redisSLAStatusCache) Counts(ctx context.Context) (map[sla.Status]int64, error) {
	vals, err := c.client.HVals(ctx, c.statusKey).Result()
	if err != nil {
		return nil, err
	}
	counts := map[sla.Status]int64{
		sla.StatusNormal:  0,
		sla.StatusWarn:    0,
		sla.StatusOverdue: 0,
	}
	for _, v := range vals {
		st, err := sla.ParseStatus(v)
		if err != nil {
			continue
		}
		counts[st]++
	}
	return counts, nil
}

func (c *redisSLAStatusCache) DueBefore(ctx context.Context, t time.Time, limit int64) ([]string, error) {
	return c.client.ZRangeByScore(ctx, c.dueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(t.Unix(), 10),
		Count: limit,
	}).Result()
}
