package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WebSocket message types for the progress protocol
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeProgress = "progress"
	MsgTypeComplete = "complete"
	MsgTypeError    = "error"
	MsgTypePong     = "pong"
)

// WSMessage is one frame of the progress protocol
type WSMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Progress  int         `json:"progress"`
	Status    string      `json:"status,omitempty"`
	Message   string      `json:"message,omitempty"`
	RowCount  int         `json:"rowCount,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// WebSocketHandler pushes processing progress to connected clients
type WebSocketHandler struct {
	sessions SessionManager
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new progress socket handler
func NewWebSocketHandler(sessions SessionManager) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) send(msg WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// HandleProgressSocket upgrades the connection and sends a progress frame per
// poll until the session finishes.
func (wsh *WebSocketHandler) HandleProgressSocket(c echo.Context) error {
	id := c.Param("id")
	if _, ok := wsh.sessions.Get(id); !ok {
		return NewNotFoundError("session", id)
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	conn := &wsConn{ws: ws}
	closed := make(chan struct{})
	go wsh.readLoop(conn, closed)

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(progressStreamLimit)
	defer timeout.Stop()

	last := -1
	for {
		sess, ok := wsh.sessions.Get(id)
		if !ok {
			conn.send(WSMessage{Type: MsgTypeError, SessionID: id, Message: "session not found"})
			return nil
		}

		switch {
		case sess.Status.Finished():
			msg := WSMessage{
				Type:      MsgTypeComplete,
				SessionID: id,
				Progress:  sess.Progress,
				Status:    string(sess.Status),
				RowCount:  sess.RowCount,
				Message:   sess.Error,
			}
			if err := conn.send(msg); err != nil {
				return nil
			}
			conn.close()
			return nil
		case sess.Progress != last:
			last = sess.Progress
			msg := WSMessage{Type: MsgTypeProgress, SessionID: id, Progress: sess.Progress, Status: string(sess.Status)}
			if err := conn.send(msg); err != nil {
				return nil
			}
		}

		select {
		case <-ticker.C:
		case <-closed:
			return nil
		case <-timeout.C:
			conn.send(WSMessage{Type: MsgTypeError, SessionID: id, Message: "stream timeout"})
			return nil
		}
	}
}

// readLoop answers pings and reports when the client goes away.
func (wsh *WebSocketHandler) readLoop(conn *wsConn, closed chan<- struct{}) {
	defer close(closed)
	for {
		var msg WSMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("progress socket closed", "component", "websocket", "error", err)
			}
			return
		}
		if msg.Type == MsgTypePing {
			conn.send(WSMessage{Type: MsgTypePong})
		}
	}
}
