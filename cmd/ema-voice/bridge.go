package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// uiBridge forwards engine callbacks to the UI in order without blocking the
// engine loop on rendering.
type uiBridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	signal chan struct{}
}

func newUIBridge() *uiBridge {
	return &uiBridge{signal: make(chan struct{}, 1)}
}

func (b *uiBridge) post(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *uiBridge) run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.signal:
			b.mu.Lock()
			queue := b.queue
			b.queue = nil
			b.mu.Unlock()

			for _, msg := range queue {
				send(msg)
			}
		}
	}
}
