package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/vtype/vtype/internal/chat/service"
	"github.com/vtype/vtype/pkg/httpx"
	"github.com/vtype/vtype/pkg/slogx"
)

// Handler authenticates and upgrades websocket connections. The access token
// comes from the `token` query parameter or the Authorization header; any
// authentication failure rejects the handshake before a presence entry is
// created.
func Handler(hub *Hub, tokens *service.TokenService, messages *service.MessageService, allowedOrigin string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := slogx.FromContext(ctx)

		raw := bearerToken(r)
		user, _, err := tokens.Authenticate(ctx, raw)
		if err != nil {
			reason := service.AuthReason(err)
			if reason == "" {
				log.Error("websocket authentication error", slog.Any("error", err))
				httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
					"message": "Authentication failed",
				})
				return
			}
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "Authentication failed",
				"code":    reason,
			})
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the handshake error.
			return
		}

		client := newClient(conn, user.Public())
		hub.Register(client)
		log.Info("websocket connected",
			slog.String("user_id", user.ID),
			slog.String("username", user.Username),
		)

		// The handler blocks in readPump for the connection's lifetime, so
		// the request context stays valid for session work.
		session := NewSession(ctx, client, hub, messages)

		go client.writePump()
		client.readPump(session)
	})
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return authz[7:]
	}
	return ""
}
