package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/artifactory/invoice-reminders/environments"
	"github.com/artifactory/invoice-reminders/internal/domain"
	"github.com/artifactory/invoice-reminders/pkg/logger"
)

// Client stores the OverdueGroup behind each posted Slack message so click handlers do not
// have to parse it back out of the rendered text.
type Client struct {
	client valkey.Client
	ttl    time.Duration
}

const snapshotKeyPrefix = "overdue_snapshot:"

func NewRedisClient(cfg environments.RedisConfig) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Infof("Connected to Redis (via Valkey client)")

	return &Client{client: client, ttl: cfg.SnapshotTTL}, nil
}

func snapshotKey(channelID, messageTS string) string {
	return snapshotKeyPrefix + channelID + ":" + messageTS
}

// SaveSnapshot records the group rendered into the message at channelID/messageTS.
func (c *Client) SaveSnapshot(ctx context.Context, channelID, messageTS string, group domain.OverdueGroup) error {
	data, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := snapshotKey(channelID, messageTS)

	err = c.client.Do(ctx, c.client.B().Set().Key(key).Value(string(data)).Ex(c.ttl).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}

	logger.Debugf("Cached snapshot %s (%d invoices)", key, len(group.Invoices))

	return nil
}

// GetSnapshot returns nil, nil when no snapshot is cached for the message.
func (c *Client) GetSnapshot(ctx context.Context, channelID, messageTS string) (*domain.OverdueGroup, error) {
	key := snapshotKey(channelID, messageTS)

	result := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if result.Error() != nil {
		if valkey.IsValkeyNil(result.Error()) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", result.Error())
	}

	data, err := result.ToString()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var group domain.OverdueGroup
	if err := json.Unmarshal([]byte(data), &group); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &group, nil
}

func (c *Client) Close() error {
	c.client.Close()
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}
