package ids

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

// NewMessageID generates a time-ordered ID for a stored message.
func NewMessageID() string {
	return ulid.Make().String()
}

// NewEphemeralID generates a client-local message ID such as
// "local-magic-01j9...". It can never collide with a stored message ID.
func NewEphemeralID(kind string) string {
	return models.EphemeralPrefix + kind + "-" + strings.ToLower(ulid.Make().String())
}

// NewConnID generates a time-ordered UUID v7 for a live connection.
func NewConnID() string {
	return uuid.Must(uuid.NewV7()).String()
}
