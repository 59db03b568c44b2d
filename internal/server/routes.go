package server

import (
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/boardsync/internal/api/v1"
	"github.com/gosuda/boardsync/internal/api/ws"
)

func registerAPIRoutes(api huma.API, store v1.DataStore, online v1.PresenceSource) {
	v1.RegisterBoardRoutes(api, store, online)
	v1.RegisterChatRoutes(api, store)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/ws", hub.ServeWS)
}

// originPatterns converts CORS origins into the host patterns the websocket
// handshake checks the Origin header against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
