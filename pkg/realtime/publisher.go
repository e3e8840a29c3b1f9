package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/pkg/config"
)

// Frame is the wire format pushed to websocket clients.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Publisher fans frames out to connected clients.
type Publisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, frame Frame) error
	PublishPosts(ctx context.Context, frame Frame) error
}

// Bus is the Redis pub/sub surface the publisher rides on.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes frames onto per-user and shared Redis channels.
// Websocket gateways subscribe to the same channels, so delivery works
// across api replicas.
type RedisPublisher struct {
	bus Bus
	cfg config.RealtimeConfig
}

// NewRedisPublisher builds a publisher over the given bus.
func NewRedisPublisher(bus Bus, cfg config.RealtimeConfig) (*RedisPublisher, error) {
	if bus == nil {
		return nil, errors.New("realtime bus is required")
	}
	if cfg.UserChannelPrefix == "" {
		return nil, errors.New("user channel prefix is required")
	}
	if cfg.PostsChannel == "" {
		return nil, errors.New("posts channel is required")
	}
	return &RedisPublisher{bus: bus, cfg: cfg}, nil
}

// UserChannel returns the per-user delivery channel name.
func (p *RedisPublisher) UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", p.cfg.UserChannelPrefix, userID)
}

// PostsChannel returns the shared feed channel name.
func (p *RedisPublisher) PostsChannel() string {
	return p.cfg.PostsChannel
}

// PublishToUser pushes a frame to a single user's channel.
func (p *RedisPublisher) PublishToUser(ctx context.Context, userID uuid.UUID, frame Frame) error {
	if userID == uuid.Nil {
		return errors.New("user id is required")
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return p.bus.Publish(ctx, p.UserChannel(userID), payload)
}

// PublishPosts pushes a frame to every client on the shared feed channel.
func (p *RedisPublisher) PublishPosts(ctx context.Context, frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return p.bus.Publish(ctx, p.cfg.PostsChannel, payload)
}
