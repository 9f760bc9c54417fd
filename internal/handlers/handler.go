package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Kenmaaa05/EchoChamber/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	backend store.Backend
	logger  zerolog.Logger

	// streams is cancelled by CloseStreams to end every open socket.
	streams     context.Context
	stopStreams context.CancelFunc
}

// NewHandler creates a new Handler serving the given backend.
func NewHandler(backend store.Backend, logger zerolog.Logger) *Handler {
	streams, stop := context.WithCancel(context.Background())
	return &Handler{
		backend:     backend,
		logger:      logger,
		streams:     streams,
		stopStreams: stop,
	}
}

// CloseStreams ends every open snapshot socket. http.Server.Shutdown does
// not track hijacked connections, so call this before shutting down.
func (h *Handler) CloseStreams() {
	h.stopStreams()
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
