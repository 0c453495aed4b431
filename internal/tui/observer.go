package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"gameshelf/internal/state"
)

// ChannelObserver adapts GameState observers to a channel for Bubble Tea.
// Only the newest view is kept: a view that arrives while an older one is
// still queued replaces it.
type ChannelObserver struct {
	ch        chan state.GameView
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannelObserver creates an observer with a one-view buffer.
func NewChannelObserver() *ChannelObserver {
	return &ChannelObserver{
		ch:   make(chan state.GameView, 1),
		done: make(chan struct{}),
	}
}

// OnView queues v without blocking the state holder.
func (o *ChannelObserver) OnView(v state.GameView) {
	for {
		select {
		case o.ch <- v:
			return
		default:
		}
		select {
		case <-o.ch:
		default:
		}
	}
}

// Close releases any pending waitForView. It is safe to call more than once.
func (o *ChannelObserver) Close() {
	o.closeOnce.Do(func() { close(o.done) })
}

// viewMsg carries a new view into the update loop
type viewMsg struct {
	view state.GameView
}

// waitForView blocks until the next view is queued or the observer is
// closed. A closed observer yields a nil message, which Bubble Tea drops.
func (o *ChannelObserver) waitForView() tea.Cmd {
	return func() tea.Msg {
		select {
		case v := <-o.ch:
			return viewMsg{view: v}
		case <-o.done:
			return nil
		}
	}
}
