package delayqueue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "formflow:delayed_steps"

var claimScript = redis.NewScript(`
local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
if #members > 0 then
	redis.call("ZREM", KEYS[1], unpack(members))
end
return members
`)

// RedisQueue keeps entries in a sorted set scored by due time in unix milliseconds.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

func NewRedisQueue(client redis.UniversalClient, key string, logger *slog.Logger) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}

	return &RedisQueue{
		client: client,
		key:    key,
		logger: logger.With("module", "delayqueue"),
	}
}

func (q *RedisQueue) Schedule(ctx context.Context, entry Entry, at time.Time) error {
	err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: entry.member(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", entry.member(), err)
	}

	return nil
}

func (q *RedisQueue) Due(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	members, err := claimScript.Run(ctx, q.client, []string{q.key},
		strconv.FormatInt(now.UnixMilli(), 10), limit).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to claim due entries: %w", err)
	}

	entries := make([]Entry, 0, len(members))

	for _, member := range members {
		entry, err := parseMember(member)
		if err != nil {
			q.logger.WarnContext(ctx, "discarding delay queue entry", "member", member, "error", err)

			continue
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
