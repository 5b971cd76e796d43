package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"meshdash/internal/dashboard"
)

// Events buffers dashboard notifications until the program consumes them.
// Every redraw reads a fresh snapshot, so a full buffer drops the event.
type Events struct {
	ch chan dashboard.Event
}

// NewEvents returns an event buffer of the given size.
func NewEvents(size int) *Events {
	if size <= 0 {
		size = 64
	}
	return &Events{ch: make(chan dashboard.Event, size)}
}

// Notify queues e. Pass it as dashboard.Options.Notify.
func (e *Events) Notify(ev dashboard.Event) {
	select {
	case e.ch <- ev:
	default:
	}
}

// Run starts the terminal program and blocks until the user quits or ctx
// is done.
func Run(ctx context.Context, state *dashboard.State, events *Events) error {
	p := tea.NewProgram(New(ctx, state), tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events.ch:
				p.Send(EventMsg(ev))
			}
		}
	}()

	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
