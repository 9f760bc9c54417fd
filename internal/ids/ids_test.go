package ids

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

func TestNewMessageID(t *testing.T) {
	id := NewMessageID()
	_, err := ulid.ParseStrict(id)
	require.NoError(t, err)
	assert.False(t, models.IsEphemeralID(id))
}

func TestNewEphemeralID(t *testing.T) {
	a := NewEphemeralID("magic")
	b := NewEphemeralID("magic")

	assert.True(t, strings.HasPrefix(a, "local-magic-"))
	assert.True(t, models.IsEphemeralID(a))
	assert.NotEqual(t, a, b)
}

func TestNewConnID(t *testing.T) {
	id, err := uuid.Parse(NewConnID())
	require.NoError(t, err)
	assert.Equal(t, 7, int(id.Version()))
}
