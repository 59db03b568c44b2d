package collab

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event names.
const (
	EventBoardJoin   = "board:join"
	EventBoardLeave  = "board:leave"
	EventBoardUpdate = "board:update"

	EventTaskCreate = "task:create"
	EventTaskUpdate = "task:update"
	EventTaskDelete = "task:delete"
	EventTaskMove   = "task:move"

	EventColumnCreate  = "column:create"
	EventColumnUpdate  = "column:update"
	EventColumnDelete  = "column:delete"
	EventColumnReorder = "column:reorder"

	EventChatSend       = "chat:send"
	EventChatTyping     = "chat:typing"
	EventChatStopTyping = "chat:stopTyping"

	EventUserCursor = "user:cursor"
	EventPing       = "ping"
)

// Outbound event names. chat:typing and user:cursor are echoed under their
// inbound names; chat:stop-typing is also accepted inbound.
const (
	EventBoardUpdated  = "board:updated"
	EventTaskCreated   = "task:created"
	EventTaskUpdated   = "task:updated"
	EventTaskDeleted   = "task:deleted"
	EventTaskMoved     = "task:moved"
	EventColumnCreated = "column:created"
	EventColumnUpdated = "column:updated"
	EventColumnDeleted = "column:deleted"
	EventUserJoined    = "user:joined"
	EventUserLeft      = "user:left"
	EventUsersOnline   = "users:online"
	EventChatMessage   = "chat:message"
	EventChatStopped   = "chat:stop-typing"
	EventErr           = "error"
	EventNotification  = "notification"
	EventPong          = "pong"
)

// Envelope is one websocket text frame in either direction.
type Envelope struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args"`
}

// Encode builds an outbound frame with positional args.
func Encode(event string, args ...any) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("collab.Encode: %s arg %d: %w", event, i, err)
		}
		raw = append(raw, b)
	}
	return json.Marshal(Envelope{Event: event, Args: raw})
}

// Decode parses an inbound frame.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("collab.Decode: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, errors.New("collab.Decode: missing event name")
	}
	return env, nil
}

// arg decodes the i-th positional argument into v. A missing or null argument
// is reported as a validation error naming field.
func arg(args []json.RawMessage, i int, field string, v any) error {
	if i >= len(args) || isNull(args[i]) {
		return validationf("%s is required", field)
	}
	if err := json.Unmarshal(args[i], v); err != nil {
		return validationf("invalid %s", field)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Nullable distinguishes an absent field from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if isNull(data) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}
