package handlers

import (
	"net/http"
	"strconv"
	"time"
)

const (
	recentLimit    = 5
	previewMaxRune = 200
)

// MessagePreview represents a preview of a message.
type MessagePreview struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp int64  `json:"ts"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalMessages  int64            `json:"total_messages"`
	Authors        int              `json:"authors"`
	LastActivity   string           `json:"last_activity"`
	RecentMessages []MessagePreview `json:"recent_messages"`
}

// Stats summarizes the timeline: counts, last activity and the newest
// messages.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := h.backend.Count(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	msgs, err := h.backend.Snapshot(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	authors := make(map[string]struct{})
	for _, msg := range msgs {
		authors[msg.Author] = struct{}{}
	}

	lastActivity := "no activity yet"
	if n := len(msgs); n > 0 {
		lastActivity = formatTimeAgo(time.UnixMilli(msgs[n-1].Timestamp))
	}

	start := len(msgs) - recentLimit
	if start < 0 {
		start = 0
	}
	recent := make([]MessagePreview, 0, len(msgs)-start)
	for i := len(msgs) - 1; i >= start; i-- {
		msg := msgs[i]
		text := msg.Text
		if runes := []rune(text); len(runes) > previewMaxRune {
			text = string(runes[:previewMaxRune-3]) + "..."
		}
		recent = append(recent, MessagePreview{
			ID:        msg.ID,
			Author:    msg.Author,
			Text:      text,
			Timestamp: msg.Timestamp,
		})
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalMessages:  total,
		Authors:        len(authors),
		LastActivity:   lastActivity,
		RecentMessages: recent,
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	default:
		return plural(int(diff.Hours()/24), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
