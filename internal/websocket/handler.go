package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adgenie/backend/internal/db"
	"github.com/adgenie/backend/internal/generation"
	"github.com/adgenie/backend/internal/logger"
	"github.com/adgenie/backend/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// TokenVerifier resolves a raw access token to its user.
type TokenVerifier interface {
	CurrentUser(ctx context.Context, rawAccessToken string) (*db.User, error)
}

// ProgressSource provides per-user generation progress subscriptions.
type ProgressSource interface {
	SubscribeToUserProgress(ctx context.Context, userID string) generation.ProgressStream
}

// Handler streams generation job progress to authenticated clients.
type Handler struct {
	verifier TokenVerifier
	source   ProgressSource
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHandler creates a WebSocket handler. allowedOrigin restricts the
// Origin header; empty allows any origin.
func NewHandler(verifier TokenVerifier, source ProgressSource, allowedOrigin string) *Handler {
	return &Handler{
		verifier: verifier,
		source:   source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		log: logger.WithComponent("websocket"),
	}
}

// progressEvent is the wire shape sent to clients.
type progressEvent struct {
	Type string          `json:"type"`
	Job  *generation.Job `json:"job"`
}

// ServeWS handles WebSocket requests from clients.
// Authentication is done via query parameter: ?token=<jwt>
// because the browser WebSocket API doesn't support custom headers.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, `{"code":"UNAUTHORIZED","message":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.verifier.CurrentUser(r.Context(), token)
	if err != nil {
		http.Error(w, `{"code":"UNAUTHORIZED","message":"invalid access token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := h.source.SubscribeToUserProgress(ctx, user.ID.String())
	if sub == nil {
		cancel()
		conn.Close()
		return
	}

	metrics.WebsocketConnections.Inc()
	go h.writePump(ctx, cancel, conn, sub)
	go h.readPump(cancel, conn)

	h.log.Info(r.Context(), "websocket client connected", map[string]any{"user_id": user.ID.String()})
}

// writePump forwards progress events and keeps the connection alive with pings.
func (h *Handler) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sub generation.ProgressStream) {
	ticker := time.NewTicker(pingPeriod)
	jobs := sub.Channel()

	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
		cancel()
		metrics.WebsocketConnections.Dec()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(progressEvent{Type: "job_progress", Job: job})
			if err != nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and tears the connection down on close.
func (h *Handler) readPump(cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
