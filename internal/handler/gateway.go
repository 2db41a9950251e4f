package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/synk/synk-server-go/internal/gateway"
	"github.com/synk/synk-server-go/internal/middleware"
)

type GatewayHandler struct {
	hub      *gateway.Hub
	upgrader websocket.Upgrader
}

// NewGatewayHandler accepts handshakes from allowedOrigins; an empty list
// accepts any origin.
func NewGatewayHandler(hub *gateway.Hub, allowedOrigins []string) *GatewayHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins[strings.ToLower(o)] = struct{}{}
		}
	}

	return &GatewayHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[strings.ToLower(r.Header.Get("Origin"))]
				return ok
			},
		},
	}
}

// GET /ws
// The account comes from the auth middleware; the connection lives until the
// client goes away or the hub closes.
func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("accountId", account.ID).Msg("websocket upgrade failed")
		return
	}

	if err := h.hub.Serve(r.Context(), account.ID, conn); err != nil {
		log.Warn().Err(err).Str("accountId", account.ID).Msg("gateway connection rejected")
	}
}
