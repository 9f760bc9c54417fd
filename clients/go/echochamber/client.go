// Package echochamber provides a client for the EchoChamber chat server.
//
// Client implements the message source contract used by chat sessions:
// Subscribe streams full snapshots over a WebSocket, while Insert and
// DeleteAll are plain JSON requests.
package echochamber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
	"github.com/Kenmaaa05/EchoChamber/internal/store"
)

// DefaultURL is used when no server URL is configured.
const DefaultURL = "http://localhost:8080"

// Client is an EchoChamber API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Dialer     *websocket.Dialer

	logger       zerolog.Logger
	minReconnect time.Duration
	maxReconnect time.Duration
	readTimeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithReconnectDelay bounds the backoff between WebSocket reconnects.
func WithReconnectDelay(min, max time.Duration) Option {
	return func(c *Client) {
		c.minReconnect = min
		c.maxReconnect = max
	}
}

// WithReadTimeout sets how long the snapshot socket may stay silent before
// it is treated as dead and redialled. Server pings count as traffic.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// NewClient creates a new EchoChamber client.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}

	c := &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		Dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:       zerolog.Nop(),
		minReconnect: time.Second,
		maxReconnect: 30 * time.Second,
		readTimeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("echochamber error %d: %s", e.Status, e.Message)
}

// doRequest performs an HTTP request and decodes a JSON response into out.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend string `json:"backend"`
	Checks  map[string]struct {
		Status  string `json:"status"`
		Latency string `json:"latency,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"checks"`
	Timestamp string `json:"timestamp"`
}

// Health checks server health. A degraded server is an *APIError with
// status 503.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MessagesResponse is the response from listing messages.
type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
	Count    int              `json:"count"`
}

// Messages fetches the full ordered snapshot once.
func (c *Client) Messages(ctx context.Context) ([]models.Message, error) {
	var resp MessagesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/messages", nil, &resp); err != nil {
		return nil, err
	}
	return markRemote(resp.Messages), nil
}

// PostMessageRequest is the request body for posting a message.
type PostMessageRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// PostMessageResponse is the response from posting a message.
type PostMessageResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// Insert posts a message. The server assigns its ID and timestamp.
func (c *Client) Insert(ctx context.Context, author, text string) (*models.Message, error) {
	var resp PostMessageResponse
	req := PostMessageRequest{Author: author, Text: text}
	if err := c.doRequest(ctx, http.MethodPost, "/messages", req, &resp); err != nil {
		return nil, err
	}

	return &models.Message{
		ID:        resp.ID,
		Author:    store.SanitizeName(author),
		Text:      text,
		Timestamp: resp.Timestamp,
		Origin:    models.OriginRemote,
	}, nil
}

// DeleteAll wipes every stored message and returns how many were removed.
func (c *Client) DeleteAll(ctx context.Context) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.doRequest(ctx, http.MethodDelete, "/messages", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// markRemote stamps server messages with the remote origin.
func markRemote(msgs []models.Message) []models.Message {
	if msgs == nil {
		return []models.Message{}
	}
	for i := range msgs {
		msgs[i].Origin = models.OriginRemote
	}
	return msgs
}

// wsURL maps the base URL onto the snapshot socket.
func (c *Client) wsURL() string {
	u := c.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/messages/ws"
}
