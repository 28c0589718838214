package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"peerprep/interview/internal/models"
)

const publishTimeout = 2 * time.Second

// Publisher forwards room events to a redis pub/sub channel so other services
// (collaboration, history) can react to pairings.
type Publisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewPublisher(rdb *redis.Client, channel string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{rdb: rdb, channel: channel, logger: logger}
}

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (p *Publisher) Channel() string { return p.channel }

func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.rdb.Publish(ctx, p.channel, data).Err()
}

// HandleEvent publishes the event. Failures are logged; matching never waits on redis.
func (p *Publisher) HandleEvent(ctx context.Context, event models.Event) {
	if err := p.Publish(context.WithoutCancel(ctx), event); err != nil {
		p.logger.Warn("failed to publish room event",
			zap.String("type", string(event.Type)),
			zap.String("roomId", event.RoomID),
			zap.Error(err))
	}
}

// Ping reports whether redis is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
