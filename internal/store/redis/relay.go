package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// relayFrame wraps a room broadcast for other instances. Origin lets an
// instance drop its own publications.
type relayFrame struct {
	Origin  string          `json:"origin"`
	Except  uuid.UUID       `json:"except,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// DeliverFunc hands a broadcast from another instance to the local rooms.
type DeliverFunc func(boardID, except uuid.UUID, payload []byte)

// Relay fans room broadcasts out across server instances over board channels.
type Relay struct {
	ps     *PubSub
	origin string
}

// NewRelay creates a relay. origin must be unique per process.
func NewRelay(ps *PubSub, origin string) *Relay {
	return &Relay{ps: ps, origin: origin}
}

// Publish sends an encoded broadcast to the board channel. except is the
// connection that must not receive it, or uuid.Nil.
func (r *Relay) Publish(ctx context.Context, boardID, except uuid.UUID, payload []byte) error {
	data, err := json.Marshal(relayFrame{Origin: r.origin, Except: except, Payload: payload})
	if err != nil {
		return fmt.Errorf("redis.Relay.Publish: marshal: %w", err)
	}
	if err := r.ps.Publish(ctx, BoardChannel(boardID), data); err != nil {
		return fmt.Errorf("redis.Relay.Publish: %w", err)
	}
	return nil
}

// Run delivers broadcasts published by other instances until ctx ends.
func (r *Relay) Run(ctx context.Context, deliver DeliverFunc) error {
	messages, cleanup, err := r.ps.PSubscribe(ctx, BoardPattern)
	if err != nil {
		return fmt.Errorf("redis.Relay.Run: %w", err)
	}
	defer cleanup()

	for msg := range messages {
		boardID, err := ParseBoardChannel(msg.Channel)
		if err != nil {
			log.Warn().Err(err).Msg("relay: skipping message")
			continue
		}
		var frame relayFrame
		if err := json.Unmarshal(msg.Payload, &frame); err != nil {
			log.Warn().Err(err).Str("channel", msg.Channel).Msg("relay: malformed frame")
			continue
		}
		if frame.Origin == r.origin {
			continue
		}
		deliver(boardID, frame.Except, frame.Payload)
	}

	return ctx.Err()
}
