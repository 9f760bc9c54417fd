package echochamber

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
	"github.com/Kenmaaa05/EchoChamber/internal/store"
)

// frame mirrors the server's snapshot socket messages.
type frame struct {
	Type     string           `json:"type"`
	Messages []models.Message `json:"messages"`
	Error    string           `json:"error"`
}

// pongWait bounds writing a pong in reply to a server ping.
const pongWait = 10 * time.Second

// ErrServer wraps error frames pushed by the server.
var ErrServer = errors.New("server reported a subscription error")

type subscription struct {
	cancel context.CancelFunc
	once   sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

// Close stops the feed. It does not wait for the reader, so it is safe to
// call from inside a handler.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	})
	return nil
}

func (s *subscription) setConn(ctx context.Context, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		conn.Close()
		return false
	}
	s.conn = conn
	return true
}

// Subscribe opens the snapshot socket. The first dial must succeed; after
// that, dropped connections are reported to onError and redialled with
// backoff until the subscription is closed. Every (re)connect delivers a
// fresh full snapshot.
func (c *Client) Subscribe(ctx context.Context, onSnapshot store.SnapshotHandler, onError store.ErrorHandler) (store.Subscription, error) {
	conn, _, err := c.Dialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial snapshot socket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel}
	sub.setConn(ctx, conn)

	go c.run(ctx, sub, conn, onSnapshot, onError)

	return sub, nil
}

func (c *Client) run(ctx context.Context, sub *subscription, conn *websocket.Conn, onSnapshot store.SnapshotHandler, onError store.ErrorHandler) {
	delay := c.minReconnect

	for {
		err := c.readFrames(ctx, conn, onSnapshot, onError, func() { delay = c.minReconnect })
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn().Err(err).Msg("snapshot socket dropped")
		if onError != nil {
			onError(err)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay *= 2; delay > c.maxReconnect {
				delay = c.maxReconnect
			}

			next, _, err := c.Dialer.DialContext(ctx, c.wsURL(), nil)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Debug().Err(err).Dur("retry_in", delay).Msg("reconnect failed")
				continue
			}
			if !sub.setConn(ctx, next) {
				return
			}
			conn = next
			c.logger.Info().Msg("snapshot socket reconnected")
			break
		}
	}
}

// readFrames delivers frames until the connection fails or stays silent
// for longer than the read timeout.
func (c *Client) readFrames(ctx context.Context, conn *websocket.Conn, onSnapshot store.SnapshotHandler, onError store.ErrorHandler, healthy func()) error {
	extend := func() error {
		if c.readTimeout <= 0 {
			return nil
		}
		return conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	conn.SetPingHandler(func(data string) error {
		if err := extend(); err != nil {
			return err
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(pongWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		return err
	})

	for {
		if err := extend(); err != nil {
			return err
		}
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch f.Type {
		case "snapshot":
			healthy()
			onSnapshot(markRemote(f.Messages))
		case "error":
			if onError != nil {
				onError(fmt.Errorf("%w: %s", ErrServer, f.Error))
			}
		default:
			c.logger.Debug().Str("type", f.Type).Msg("ignoring unknown frame")
		}
	}
}
