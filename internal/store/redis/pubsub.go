package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const boardPrefix = "board:"

// BoardPattern matches every board channel.
const BoardPattern = boardPrefix + "*"

// Message is one payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}

type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

// PSubscribe subscribes to every channel matching pattern. The returned
// channel is closed when ctx ends or cleanup is called.
func (ps *PubSub) PSubscribe(ctx context.Context, pattern string) (<-chan Message, func(), error) {
	sub := ps.client.PSubscribe(ctx, pattern)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.PSubscribe: receive confirmation: %w", err)
	}

	out := make(chan Message, 256)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// BoardChannel returns the Redis channel name for a board room.
func BoardChannel(boardID uuid.UUID) string {
	return boardPrefix + boardID.String()
}

// ParseBoardChannel extracts the board id from a channel built by
// BoardChannel.
func ParseBoardChannel(channel string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(channel, boardPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("redis.ParseBoardChannel: not a board channel: %q", channel)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("redis.ParseBoardChannel: %w", err)
	}
	return id, nil
}
