package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/collab"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 64 << 10
)

// Hub upgrades authenticated HTTP requests to websocket sessions of the
// collaboration engine.
type Hub struct {
	engine         *collab.Engine
	resolver       middleware.TokenResolver
	heartbeat      time.Duration
	originPatterns []string
}

// NewHub creates a hub. A non-positive heartbeat disables server pings.
func NewHub(engine *collab.Engine, resolver middleware.TokenResolver, heartbeat time.Duration, originPatterns []string) *Hub {
	return &Hub{
		engine:         engine,
		resolver:       resolver,
		heartbeat:      heartbeat,
		originPatterns: originPatterns,
	}
}

// ServeWS authenticates the handshake, then pumps frames between the socket
// and the engine until either side closes. Unauthenticated requests never
// get upgraded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.Authenticate(r, h.resolver)
	if err != nil {
		middleware.Unauthorized(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	s, err := h.engine.Connect(id)
	if err != nil {
		log.Error().Err(err).Str("user_id", id.ID.String()).Msg("websocket connect")
		_ = conn.Close(websocket.StatusInternalError, "connect failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writePump(ctx, cancel, conn, s)
	if h.heartbeat > 0 {
		go h.ping(ctx, conn, s)
	}

	h.readLoop(ctx, conn, s)
	h.engine.Disconnect(s, collab.ReasonClientClosed)
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn, s *collab.Session) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Str("conn_id", s.ID.String()).Msg("websocket read")
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		h.engine.Handle(ctx, s, data)
	}
}

// writePump is the only writer of data frames on conn. When the engine ends
// the session it closes the socket with a status matching the reason.
func (h *Hub) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, s *collab.Session) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			_ = conn.Close(closeStatus(s.Reason()), s.Reason())
			return
		case frame := <-s.Outbound():
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			wcancel()
			if err != nil {
				log.Debug().Err(err).Str("conn_id", s.ID.String()).Msg("websocket write")
				return
			}
		}
	}
}

func (h *Hub) ping(ctx context.Context, conn *websocket.Conn, s *collab.Session) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			return
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, h.heartbeat)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				// The idle sweeper reaps the session if the peer stays silent.
				log.Debug().Err(err).Str("conn_id", s.ID.String()).Msg("websocket ping")
				continue
			}
			h.engine.Touch(s)
		}
	}
}

func closeStatus(reason string) websocket.StatusCode {
	switch reason {
	case collab.ReasonShutdown:
		return websocket.StatusGoingAway
	case collab.ReasonIdle, collab.ReasonSlowConsumer:
		return websocket.StatusPolicyViolation
	default:
		return websocket.StatusNormalClosure
	}
}
