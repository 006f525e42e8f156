package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	Ct "github.com/maroda/crowdsafe/types"
)

const (
	redisLatestKey = "crowdsafe:latest"
	redisFramesKey = "crowdsafe:frames"
	redisAlertsKey = "crowdsafe:alerts"
	redisLatestTTL = time.Hour
	redisMaxFrames = 10000
	redisMaxAlerts = 100
)

// RedisOutput publishes the newest state for other services to read.
// Frames go into a sorted set scored by capture time, alerts into a capped list.
type RedisOutput struct {
	Client *redis.Client
	ctx    context.Context
}

func NewRedisOutput(addr string) (*RedisOutput, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("RedisOutput could not reach server", slog.String("addr", addr), slog.Any("error", err))
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("RedisOutput connected", slog.String("addr", addr))
	return NewRedisOutputWithClient(client), nil
}

// NewRedisOutputWithClient is testable with dependency injection
func NewRedisOutputWithClient(c *redis.Client) *RedisOutput {
	return &RedisOutput{Client: c, ctx: context.Background()}
}

func (ro *RedisOutput) WriteRecord(rec *Ct.FrameRecord) error {
	return ro.WriteBatch([]*Ct.FrameRecord{rec})
}

func (ro *RedisOutput) WriteBatch(recs []*Ct.FrameRecord) error {
	if len(recs) == 0 {
		return nil
	}

	pipe := ro.Client.TxPipeline()
	for _, r := range recs {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		pipe.ZAdd(ro.ctx, redisFramesKey, &redis.Z{
			Score:  float64(r.Captured.UnixNano()),
			Member: data,
		})
	}

	latest, err := json.Marshal(recs[len(recs)-1])
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	pipe.Set(ro.ctx, redisLatestKey, latest, redisLatestTTL)
	pipe.ZRemRangeByRank(ro.ctx, redisFramesKey, 0, -redisMaxFrames-1)

	if _, err := pipe.Exec(ro.ctx); err != nil {
		return fmt.Errorf("failed to store records in Redis: %w", err)
	}
	return nil
}

func (ro *RedisOutput) WriteAlert(alert *Ct.AlertRecord) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := ro.Client.LPush(ro.ctx, redisAlertsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push alert: %w", err)
	}
	ro.Client.LTrim(ro.ctx, redisAlertsKey, 0, redisMaxAlerts-1)
	return nil
}

// QueryRange retrieves frame records captured strictly between start and end
func (ro *RedisOutput) QueryRange(start, end time.Time) ([]*Ct.FrameRecord, error) {
	members, err := ro.Client.ZRangeByScore(ro.ctx, redisFramesKey, &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(start.UnixNano(), 10),
		Max: "(" + strconv.FormatInt(end.UnixNano(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range frames: %w", err)
	}

	recs := make([]*Ct.FrameRecord, 0, len(members))
	for _, m := range members {
		var r Ct.FrameRecord
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			continue
		}
		recs = append(recs, &r)
	}
	return recs, nil
}

// RecentAlerts returns up to count alerts, newest first
func (ro *RedisOutput) RecentAlerts(count int64) ([]Ct.AlertRecord, error) {
	raw, err := ro.Client.LRange(ro.ctx, redisAlertsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent alerts: %w", err)
	}

	var alerts []Ct.AlertRecord
	for _, data := range raw {
		var a Ct.AlertRecord
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (ro *RedisOutput) Flush() error { return nil }

func (ro *RedisOutput) Close() error {
	return ro.Client.Close()
}

func (ro *RedisOutput) Type() string { return "Redis" }
