// Package command recognizes the literal chat commands that produce
// client-local messages instead of being posted to the message store.
package command

import (
	"strings"
	"time"

	"github.com/Kenmaaa05/EchoChamber/internal/ids"
	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

// Kind is the outcome of classifying one input.
type Kind int

const (
	// None means the input was blank and nothing happens.
	None Kind = iota
	// Surprise is the "hi" command.
	Surprise
	// Magic is the "magic" command.
	Magic
	// Void is the "the hell?" command, which toggles the alternate theme.
	Void
	// Persist means the input is an ordinary message for the store.
	Persist
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Surprise:
		return "surprise"
	case Magic:
		return "magic"
	case Void:
		return "void"
	case Persist:
		return "persist"
	default:
		return "unknown"
	}
}

// Literal command texts, compared after trimming and lowercasing.
const (
	SurpriseCommand = "hi"
	MagicCommand    = "magic"
	VoidCommand     = "the hell?"
)

// Decision is what to do with one submitted input.
type Decision struct {
	Kind Kind

	// Ephemeral is the client-local message for Surprise, Magic and Void.
	Ephemeral *models.Message

	// AlternateTheme is the theme flag after the decision is applied.
	AlternateTheme bool

	// Text is the original, untrimmed input to persist for Persist.
	Text string
}

// Local reports whether the decision stays on the client.
func (d Decision) Local() bool {
	return d.Kind == Surprise || d.Kind == Magic || d.Kind == Void
}

// Classify decides what input means. alternate is the current theme flag;
// now stamps any ephemeral message produced.
func Classify(input string, alternate bool, now time.Time) Decision {
	normalized := strings.ToLower(strings.TrimSpace(input))
	d := Decision{Kind: None, AlternateTheme: alternate}

	switch normalized {
	case "":
		return d
	case SurpriseCommand:
		d.Kind = Surprise
		d.Ephemeral = ephemeral("rick", now, "do not click!!", "heyyy! got a surprise for you!",
			"https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	case MagicCommand:
		d.Kind = Magic
		d.Ephemeral = ephemeral("magic", now, "The Marauders!", "I solemnly swear that I was up to no good!", "")
	case VoidCommand:
		d.Kind = Void
		d.AlternateTheme = !alternate
		if d.AlternateTheme {
			d.Ephemeral = ephemeral("emo", now, "Vecna", "Welcome to the void.", "")
		} else {
			d.Ephemeral = ephemeral("emo", now, "Spidey", "Back to the vibes.", "")
		}
	default:
		d.Kind = Persist
		d.Text = input
	}
	return d
}

func ephemeral(kind string, now time.Time, author, text, link string) *models.Message {
	return &models.Message{
		ID:        ids.NewEphemeralID(kind),
		Author:    author,
		Text:      text,
		Link:      link,
		Timestamp: now.UnixMilli(),
		Origin:    models.OriginEphemeral,
	}
}
