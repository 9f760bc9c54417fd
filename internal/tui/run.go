package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
	"github.com/Kenmaaa05/EchoChamber/internal/session"
	"github.com/Kenmaaa05/EchoChamber/internal/store"
)

// Run opens a chat session on source and shows it until the user quits.
// Session changes reach the screen through Program.Send.
func Run(ctx context.Context, name string, source store.MessageSource, logger zerolog.Logger) error {
	var p *tea.Program

	s := session.New(name, source,
		session.WithLogger(logger),
		session.WithOnChange(func(view []models.Message, alternate bool) {
			p.Send(ViewMsg{Messages: view, Alternate: alternate})
		}),
		session.WithOnError(func(err error) {
			p.Send(SyncErrMsg{Err: err})
		}),
	)
	defer s.Close()

	// The session only starts from Init, so p is set before any callback.
	p = tea.NewProgram(NewModel(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))

	_, err := p.Run()
	if err != nil {
		logger.Error().Err(err).Msg("chat screen exited with error")
	}
	return err
}
