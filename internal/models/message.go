package models

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Origin tells where a message came from.
type Origin string

const (
	// OriginRemote marks durable messages shared through the message store.
	OriginRemote Origin = "remote"
	// OriginEphemeral marks client-local messages that are never persisted.
	OriginEphemeral Origin = "ephemeral"
)

// EphemeralPrefix starts every client-local message ID.
const EphemeralPrefix = "local-"

const (
	MaxAuthorLength = 100
	MaxTextBytes    = 4096
)

// Message represents a chat message.
type Message struct {
	ID        string `json:"id"` // ULID for remote, local-<kind>-<ulid> for ephemeral
	Author    string `json:"author"`
	Text      string `json:"text"`
	Link      string `json:"link,omitempty"`
	Timestamp int64  `json:"ts"` // Unix ms, 0 until the store commits the write
	Origin    Origin `json:"origin"`
}

// IsEphemeral reports whether the message is local to one client.
func (m Message) IsEphemeral() bool {
	return m.Origin == OriginEphemeral || IsEphemeralID(m.ID)
}

// IsEphemeralID reports whether id carries the local prefix.
func IsEphemeralID(id string) bool {
	return strings.HasPrefix(id, EphemeralPrefix)
}

// Validate checks a message before it is written to a store.
func (m Message) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Author, validation.Required, validation.RuneLength(1, MaxAuthorLength)),
		validation.Field(&m.Text, validation.Required, validation.Length(1, MaxTextBytes)),
		validation.Field(&m.Link, is.URL),
	)
}
