package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/referral_backend/logger"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// NewUpgrader accepts connections from the listed origins only. An empty list
// accepts any origin, for local development.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			return allowed[r.Header.Get("Origin")]
		},
	}
}

// HandleWebSocket upgrades an authenticated request and registers the
// dashboard connection for userID. The read loop only serves to detect the
// disconnect; dashboards never send anything meaningful.
func HandleWebSocket(c echo.Context, hub *Hub, upgrader *websocket.Upgrader, userID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{UserID: userID, Conn: conn}
	if !hub.add(client) {
		return conn.Close()
	}

	if err := client.WriteJSON(Message{
		Type:    MessageTypeConnected,
		Message: "WebSocket connection established",
		UserID:  userID,
	}); err != nil {
		logger.Debug("websocket welcome to %s failed: %v", userID, err)
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		defer hub.remove(client)
		defer close(stop)

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}()

	return nil
}
