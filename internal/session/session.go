// Package session owns everything one chat client keeps for the lifetime of
// its session: the display name, the alternate-theme flag, the merged
// message view and the live subscription to the message store.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kenmaaa05/EchoChamber/internal/command"
	"github.com/Kenmaaa05/EchoChamber/internal/models"
	"github.com/Kenmaaa05/EchoChamber/internal/store"
	"github.com/Kenmaaa05/EchoChamber/internal/stream"
)

// DefaultName is used when the user gives no display name.
const DefaultName = "Anonymous"

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("session: closed")

// ChangeFunc receives the merged view and theme flag after every change.
type ChangeFunc func(view []models.Message, alternateTheme bool)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithClock sets the clock used to stamp ephemeral messages.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithOnChange registers a change callback. It runs on the goroutine that
// caused the change, one change at a time, and must not call back into the
// session's mutating methods.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Session) { s.onChange = fn }
}

// WithOnError registers a callback for subscription failures. Errors passed
// to it are SyncFailures.
func WithOnError(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// Result describes what Submit did.
type Result struct {
	Kind command.Kind

	// Message is the ephemeral message added to the view, or the message
	// acknowledged by the store.
	Message *models.Message

	// ClearInput tells the caller to reset its input field.
	ClearInput bool

	// AlternateTheme is the theme flag after the submission.
	AlternateTheme bool
}

// Session is the per-client chat context.
type Session struct {
	// events serializes state changes so they are applied and announced in
	// the order they happened. mu guards the fields below for readers.
	events sync.Mutex
	mu     sync.RWMutex

	name      string
	alternate bool
	closed    bool
	sub       store.Subscription

	// generation counts applied snapshots. Guarded by events.
	generation uint64

	engine *stream.Engine
	source store.MessageSource

	clock    func() time.Time
	logger   zerolog.Logger
	onChange ChangeFunc
	onError  func(error)
}

// New creates a session for name backed by source.
func New(name string, source store.MessageSource, opts ...Option) *Session {
	name = store.SanitizeName(name)
	if name == "" {
		name = DefaultName
	}

	s := &Session{
		name:   name,
		engine: stream.NewEngine(),
		source: source,
		clock:  time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the session's display name.
func (s *Session) Name() string {
	return s.name
}

// AlternateTheme reports whether the alternate theme is active.
func (s *Session) AlternateTheme() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alternate
}

// View returns the merged, ordered message view.
func (s *Session) View() []models.Message {
	return s.engine.CurrentView()
}

// Start subscribes to the message store. Snapshots replace the remote part
// of the view until Close is called.
func (s *Session) Start(ctx context.Context) error {
	s.mu.RLock()
	closed, started := s.closed, s.sub != nil
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if started {
		return nil
	}

	sub, err := s.source.Subscribe(ctx, s.applySnapshot, s.syncFailed)
	if err != nil {
		return newError(SyncFailure, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = sub.Close()
		return ErrClosed
	}
	s.sub = sub
	s.mu.Unlock()

	s.logger.Debug().Str("name", s.name).Msg("session subscribed")
	return nil
}

// Close disposes the subscription. Snapshots arriving afterwards are dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		return sub.Close()
	}
	return nil
}

// Submit handles one line of user input. Commands add an ephemeral message
// immediately; anything else non-blank is written to the store, and the
// input is only to be cleared once the write is acknowledged. A rejected
// write returns a PersistFailure.
func (s *Session) Submit(ctx context.Context, input string) (Result, error) {
	s.events.Lock()

	d := command.Classify(input, s.AlternateTheme(), s.clock())
	res := Result{Kind: d.Kind, AlternateTheme: d.AlternateTheme}

	if d.Local() {
		s.mu.Lock()
		s.alternate = d.AlternateTheme
		s.mu.Unlock()

		s.engine.AddEphemeral(*d.Ephemeral)
		s.emit()
		s.events.Unlock()

		res.Message = d.Ephemeral
		res.ClearInput = true
		s.logger.Debug().Str("command", d.Kind.String()).Msg("local command")
		return res, nil
	}
	s.events.Unlock()

	if d.Kind != command.Persist {
		return res, nil
	}

	msg, err := s.source.Insert(ctx, s.name, d.Text)
	if err != nil {
		s.logger.Warn().Err(err).Msg("message not persisted")
		return res, newError(PersistFailure, err)
	}

	res.Message = msg
	res.ClearInput = true
	return res, nil
}

// Clear deletes every stored message and, only once the store confirms,
// empties the local view including ephemeral messages. On failure the view
// is left untouched and a ClearFailure is returned.
//
// A snapshot applied while the delete was in flight already reflects the
// store after the wipe, so in that case only the ephemeral portion is
// dropped.
func (s *Session) Clear(ctx context.Context) error {
	s.events.Lock()
	before := s.generation
	s.events.Unlock()

	deleted, err := s.source.DeleteAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("message deletion failed")
		return newError(ClearFailure, err)
	}

	s.events.Lock()
	defer s.events.Unlock()

	if s.generation == before {
		s.engine.ClearAll()
	} else {
		s.engine.ClearEphemeral()
	}
	s.emit()

	s.logger.Info().Int64("deleted", deleted).Msg("everything has been wiped from the timeline")
	return nil
}

func (s *Session) applySnapshot(msgs []models.Message) {
	s.events.Lock()
	defer s.events.Unlock()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return
	}

	s.engine.ApplyRemoteSnapshot(msgs)
	s.generation++
	s.emit()
}

func (s *Session) syncFailed(err error) {
	s.logger.Warn().Err(err).Msg("snapshot subscription failed, keeping last view")
	if s.onError != nil {
		s.onError(newError(SyncFailure, err))
	}
}

// emit announces the current view. Caller holds s.events.
func (s *Session) emit() {
	if s.onChange != nil {
		s.onChange(s.engine.CurrentView(), s.AlternateTheme())
	}
}
