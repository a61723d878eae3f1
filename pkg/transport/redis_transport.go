package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const inboxKeyPrefix = "hiveplane:inbox:"

// RedisTransport pushes notifications onto per-agent Redis lists. Agents
// consume their inbox with BLPOP.
type RedisTransport struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedisTransport connects to Redis and verifies the connection before
// returning.
func NewRedisTransport(ctx context.Context, logger *slog.Logger, addr, password string, db int) (*RedisTransport, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTransport{
		client: client,
		logger: logger.With("module", "redis_transport", "addr", addr),
	}, nil
}

func (t *RedisTransport) Send(ctx context.Context, agentID string, notification Notification) error {
	if notification.Timestamp == "" {
		notification.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = t.client.RPush(ctx, inboxKeyPrefix+agentID, payload).Err()
	if err != nil {
		return fmt.Errorf("failed to push notification to agent inbox: %w", err)
	}

	t.logger.InfoContext(ctx, "Agent notified",
		"agent_id", agentID,
		"contract_id", notification.ContractID,
	)

	return nil
}

func (t *RedisTransport) Close(_ context.Context) error {
	return t.client.Close()
}

var _ Transport = (*RedisTransport)(nil)
