package main

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	playback "github.com/koscakluka/ema-voice/core"
)

// controller turns presses of the record button into engine calls. The first
// press starts a recording, the second submits it.
type controller struct {
	mu        sync.Mutex
	engine    *playback.Engine
	sink      sink
	selection playback.Selection
	recording bool
}

func (c *controller) toggle() tea.Cmd {
	return func() tea.Msg {
		if err := c.toggleRecording(); err != nil {
			return errorMsg{err: err}
		}
		return nil
	}
}

func (c *controller) toggleRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recording {
		if err := c.engine.BeginRecording(); err != nil {
			return err
		}
		if err := c.sink.StartRecording(context.Background()); err != nil {
			// Surfaced through the engine's error callback.
			c.engine.CaptureFailed(err)
			return nil
		}
		c.recording = true
		return nil
	}

	c.recording = false
	media, err := c.sink.StopRecording()
	if err != nil {
		c.engine.CaptureFailed(err)
		return nil
	}

	_, err = c.engine.Submit(playback.Recording{Payload: media.Payload, MIMEType: media.MIMEType}, c.selection)
	if err != nil && !errors.Is(err, playback.ErrCapture) {
		return err
	}
	return nil
}
