package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Kenmaaa05/EchoChamber/internal/metrics"
	"github.com/Kenmaaa05/EchoChamber/internal/models"
	"github.com/Kenmaaa05/EchoChamber/internal/store"
)

// MessagesResponse represents the full message snapshot.
type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
	Count    int              `json:"count"`
}

// PostMessageRequest represents the post message request.
type PostMessageRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// Validate checks the request before it reaches the store.
func (r PostMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Author, validation.Required),
		validation.Field(&r.Text, validation.Required, validation.Length(1, models.MaxTextBytes)),
	)
}

// PostMessageResponse represents the post message response.
type PostMessageResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// DeleteMessagesResponse represents the delete-all response.
type DeleteMessagesResponse struct {
	Deleted int64 `json:"deleted"`
}

// ListMessages returns every stored message, oldest first.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.backend.Snapshot(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("snapshot failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	h.JSON(w, http.StatusOK, MessagesResponse{Messages: msgs, Count: len(msgs)})
}

// PostMessage stores a message. The store assigns its ID and timestamp.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Author = store.SanitizeName(req.Author)
	if err := req.Validate(); err != nil {
		h.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	msg, err := h.backend.Insert(r.Context(), req.Author, req.Text)
	if err != nil {
		if errors.Is(err, store.ErrInvalidMessage) {
			h.Error(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("insert failed")
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	metrics.MessagesPosted.Inc()

	h.JSON(w, http.StatusCreated, PostMessageResponse{
		ID:        msg.ID,
		Timestamp: msg.Timestamp,
	})
}

// DeleteMessages removes every stored message.
func (h *Handler) DeleteMessages(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.backend.DeleteAll(r.Context())
	if err != nil {
		metrics.Clears.WithLabelValues("error").Inc()
		h.logger.Error().Err(err).Msg("message deletion failed")
		h.Error(w, http.StatusInternalServerError, "failed to delete messages")
		return
	}

	metrics.Clears.WithLabelValues("ok").Inc()
	h.logger.Info().Int64("deleted", deleted).Msg("timeline wiped")

	h.JSON(w, http.StatusOK, DeleteMessagesResponse{Deleted: deleted})
}
