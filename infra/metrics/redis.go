package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	coremetrics "github.com/kilianp07/vpp/core/metrics"
)

// DefaultRedisChannel is the pub/sub channel dispatch summaries are sent to.
const DefaultRedisChannel = "vpp:dispatch"

// RedisConfig describes the connection of a RedisSink.
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Channel  string `json:"channel"`
	// LastKey, when set, also stores the latest summary under this key.
	LastKey string `json:"last_key"`
}

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisSink publishes dispatch summaries as JSON on a Redis channel so that
// external consumers can follow dispatches in real time.
type RedisSink struct {
	client  redisClient
	channel string
	lastKey string
}

type redisSummary struct {
	DispatchID      string             `json:"dispatch_id"`
	Demand          float64            `json:"demand"`
	TotalDispatched float64            `json:"total_dispatched"`
	UnmetDemand     float64            `json:"unmet_demand"`
	Allocations     map[string]float64 `json:"allocations"`
	DurationMS      float64            `json:"duration_ms"`
	Time            time.Time          `json:"time"`
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisSink(client, cfg), nil
}

func newRedisSink(client redisClient, cfg RedisConfig) *RedisSink {
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel, lastKey: cfg.LastKey}
}

// RecordDispatch publishes the summary.
func (s *RedisSink) RecordDispatch(sum coremetrics.DispatchSummary) error {
	msg := redisSummary{
		DispatchID:      sum.DispatchID,
		Demand:          sum.Demand,
		TotalDispatched: sum.TotalDispatched,
		UnmetDemand:     sum.UnmetDemand,
		Allocations:     make(map[string]float64, len(sum.Plants)),
		DurationMS:      float64(sum.Duration.Microseconds()) / 1000,
		Time:            sum.Time,
	}
	for _, p := range sum.Plants {
		msg.Allocations[fmt.Sprint(p.PlantID)] = p.AllocatedKW
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	if s.lastKey != "" {
		if err := s.client.Set(ctx, s.lastKey, payload, 0).Err(); err != nil {
			return fmt.Errorf("redis set: %w", err)
		}
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
