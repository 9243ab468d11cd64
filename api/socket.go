package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"api_backoffice/internal/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	joinWait   = 30 * time.Second
)

// wsConn adapts a websocket to realtime.Conn. The hub's writer goroutine is
// its only caller of Send.
type wsConn struct {
	ws   *websocket.Conn
	once sync.Once
}

func (c *wsConn) Send(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

type socketHandler struct {
	hub      *realtime.Hub
	auth     Authenticator
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewSocketHandler(hub *realtime.Hub, auth Authenticator, logger *zap.Logger) *socketHandler {
	return &socketHandler{
		hub:    hub,
		auth:   auth,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// handleSocket handles GET /ws. The client must send a join directive for
// its own admin id before anything is delivered.
func (h *socketHandler) handleSocket(ctx *gin.Context) {
	admin, status, msg := authenticate(ctx, h.auth, true)
	if status != 0 {
		ctx.AbortWithStatusJSON(status, gin.H{"message": msg})
		return
	}

	ws, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := &wsConn{ws: ws}
	defer conn.Close()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(joinWait))

	var join realtime.Message
	if err := ws.ReadJSON(&join); err != nil {
		h.logger.Debug("socket closed before join", zap.Error(err))
		return
	}
	if join.Event != realtime.EventJoin || join.AdminID != admin.ID {
		h.reject(conn, "join must name the authenticated admin")
		return
	}

	data, _ := json.Marshal(map[string]string{"adminId": admin.ID})
	ack, _ := json.Marshal(realtime.Message{Event: realtime.EventJoined, Data: data})
	leave, err := h.hub.Join(admin.ID, conn, ack)
	if err != nil {
		h.reject(conn, err.Error())
		return
	}
	defer leave()

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(ws, done)

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Nothing is expected from the client after join; reading keeps
		// control frames flowing and notices the disconnect.
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("socket closed", zap.String("admin_id", admin.ID), zap.Error(err))
			}
			return
		}
	}
}

func (h *socketHandler) reject(conn *wsConn, reason string) {
	data, _ := json.Marshal(map[string]string{"message": reason})
	payload, _ := json.Marshal(realtime.Message{Event: realtime.EventError, Data: data})
	_ = conn.Send(payload)
}

func (h *socketHandler) keepAlive(ws *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
