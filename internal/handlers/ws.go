package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Kenmaaa05/EchoChamber/internal/ids"
	"github.com/Kenmaaa05/EchoChamber/internal/metrics"
	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
)

// Frame types pushed over the snapshot socket.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// Frame is a snapshot frame on the snapshot socket. It always carries
// messages, even when empty.
type Frame struct {
	Type     string           `json:"type"`
	Messages []models.Message `json:"messages"`
}

// errorFrame reports a failed snapshot read. It has no messages field.
type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin:      func(r *http.Request) bool { return true },
	ReadBufferSize:   1024,
	WriteBufferSize:  4096,
	HandshakeTimeout: 10 * time.Second,
}

// wsConn serializes writes to one socket.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeFrame(f interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return w.Close()
}

func (c *wsConn) writeControl(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(messageType, data, time.Now().Add(writeWait))
}

// Stream upgrades to a WebSocket and pushes the full ordered snapshot on
// connect and after every change. Client frames are read and discarded.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	connID := ids.NewConnID()
	logger := h.logger.With().Str("conn_id", connID).Logger()
	c := &wsConn{conn: conn}

	ctx, cancel := context.WithCancel(h.streams)
	defer cancel()

	sub, err := h.backend.Subscribe(ctx,
		func(snapshot []models.Message) {
			if snapshot == nil {
				snapshot = []models.Message{}
			}
			if err := c.writeFrame(Frame{Type: FrameSnapshot, Messages: snapshot}); err != nil {
				logger.Debug().Err(err).Msg("snapshot write failed")
				cancel()
				return
			}
			metrics.SnapshotsPushed.Inc()
		},
		func(err error) {
			logger.Warn().Err(err).Msg("snapshot fetch failed")
			_ = c.writeFrame(errorFrame{Type: FrameError, Error: "snapshot unavailable"})
		},
	)
	if err != nil {
		logger.Error().Err(err).Msg("subscribe failed")
		_ = c.writeFrame(errorFrame{Type: FrameError, Error: "subscribe failed"})
		return
	}
	defer sub.Close()

	metrics.ActiveSubscribers.Inc()
	defer metrics.ActiveSubscribers.Dec()
	logger.Debug().Str("remote", r.RemoteAddr).Msg("subscriber connected")

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.writeControl(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// The read loop notices closes and keeps pong deadlines moving.
	readErr := make(chan error, 1)
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	select {
	case err := <-readErr:
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			logger.Debug().Err(err).Msg("subscriber dropped")
		}
	case <-ctx.Done():
		_ = c.writeControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
	}

	logger.Debug().Msg("subscriber disconnected")
}
