package playback

import (
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/transport"
)

const (
	DefaultReleaseGrace = 100 * time.Millisecond
	DefaultErrorHold    = 2 * time.Second
)

type EngineOption func(*Engine)

func WithTransport(client transport.Transport) EngineOption {
	return func(e *Engine) { e.transport = client }
}

// WithResourceManager replaces the engine's handle store. The driver must
// resolve handles against the same manager.
func WithResourceManager(resources ResourceManager) EngineOption {
	return func(e *Engine) {
		if resources != nil {
			e.resources = resources
		}
	}
}

// WithReleaseGrace sets how long a completed segment's handle stays alive
// before it is released. Zero releases immediately.
func WithReleaseGrace(grace time.Duration) EngineOption {
	return func(e *Engine) { e.releaseGrace = max(grace, 0) }
}

// WithErrorHold sets how long the error mode is shown before the engine
// returns to idle.
func WithErrorHold(hold time.Duration) EngineOption {
	return func(e *Engine) { e.errorHold = max(hold, 0) }
}

// WithWaveformBars sets the number of level bars reported to the waveform
// callback.
func WithWaveformBars(bars int) EngineOption {
	return func(e *Engine) { e.waveformBars = bars }
}

func WithModeChangedCallback(callback func(previous, mode Mode)) EngineOption {
	return func(e *Engine) { e.callbacks.onModeChanged = callback }
}

func WithWaveformCallback(callback func(bars []uint8, progress float64)) EngineOption {
	return func(e *Engine) { e.callbacks.onWaveform = callback }
}

// WithErrorCallback is called with every error surfaced to the user:
// capture failures and responses that produced no audio.
func WithErrorCallback(callback func(err error)) EngineOption {
	return func(e *Engine) { e.callbacks.onError = callback }
}

// WithEventCallback receives every event the engine emits, after the typed
// callbacks ran.
func WithEventCallback(callback func(events.Event)) EngineOption {
	return func(e *Engine) { e.callbacks.onEvent = callback }
}
