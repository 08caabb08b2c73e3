// Package events publishes per-station results to a Redis stream so other
// tools (dashboards, alerting) can follow a run without reading the log.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"cotas/internal/config"
)

// StationEvent is the payload published for every processed station
type StationEvent struct {
	Code        string     `json:"code"`
	Name        string     `json:"name,omitempty"`
	Outcome     string     `json:"outcome"`
	Status      string     `json:"status,omitempty"`
	LatestLevel *float64   `json:"latest_level,omitempty"`
	LatestTime  *time.Time `json:"latest_time,omitempty"`
	Readings    int        `json:"readings"`
	Spikes      int        `json:"spikes"`
	Artifact    string     `json:"artifact,omitempty"`
	Error       string     `json:"error,omitempty"`
	RunAt       time.Time  `json:"run_at"`
}

// streamAdder is the part of the redis client the publisher needs
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher appends station events to a Redis stream
type RedisPublisher struct {
	client streamAdder
	stream string
	closer func() error
}

// NewRedisPublisher connects to the configured Redis server
func NewRedisPublisher(cfg config.Redis) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisPublisher{client: client, stream: cfg.Stream, closer: client.Close}
}

// Publish serializes the event and adds it to the stream
func (p *RedisPublisher) Publish(ctx context.Context, event StationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event for %s: %w", event.Code, err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"station": event.Code,
			"outcome": event.Outcome,
			"data":    string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event for %s to %s: %w", event.Code, p.stream, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
