package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vjpiles/backend/internal/service"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled at the HTTP level
	},
}

// ProgressHandler streams checkout progress to the browser.
type ProgressHandler struct {
	subs *service.SubscriptionService
	auth *service.AuthService
	log  *zap.Logger
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(subs *service.SubscriptionService, auth *service.AuthService, log *zap.Logger) *ProgressHandler {
	return &ProgressHandler{subs: subs, auth: auth, log: log}
}

// Handle upgrades HTTP to WebSocket and sends one JSON message per progress
// change of the caller's checkout. The connection is closed after the
// terminal message. Sending the text "cancel" cancels the checkout.
// URL: /ws/payment?token=JWT_TOKEN
func (h *ProgressHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Authenticate via query param token
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	identity, err := h.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	updates, stop, err := h.subs.WatchCheckout(identity.UserID)
	if err != nil {
		http.Error(w, "no payment in progress", http.StatusNotFound)
		return
	}
	defer stop()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.log.With(zap.String("user_id", identity.UserID))
	log.Debug("progress stream connected")

	// Read client messages until the connection goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.TrimSpace(string(msg)) == "cancel" {
				if err := h.subs.CancelCheckout(identity.UserID); err != nil {
					log.Debug("cancel from websocket ignored", zap.Error(err))
				}
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case p, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "payment finished"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(p); err != nil {
				log.Debug("progress stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			log.Debug("progress stream disconnected")
			return
		}
	}
}
