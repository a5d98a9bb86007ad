// Package tui renders a live session as a text tree in the terminal.
package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ziadkadry99/treewatch/internal/render"
	"github.com/ziadkadry99/treewatch/internal/store"
)

// Bridge connects the session goroutine to the bubbletea loop. It is a
// render.Sink and a state observer; both only raise a coalesced change
// signal, and the model re-reads the session when it sees one.
type Bridge struct {
	changed chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewBridge creates a bridge.
func NewBridge() *Bridge {
	return &Bridge{
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Render implements render.Sink.
func (b *Bridge) Render(render.Batch) { b.notify() }

// Observe has the session.StateFunc signature.
func (b *Bridge) Observe(store.State) { b.notify() }

// Close releases a model waiting for changes.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) notify() {
	select {
	case b.changed <- struct{}{}:
	default:
	}
}

// Run starts the viewer and blocks until the user quits or ctx is done.
func Run(ctx context.Context, src Source, bridge *Bridge) error {
	defer bridge.Close()

	p := tea.NewProgram(NewModel(src, bridge), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
