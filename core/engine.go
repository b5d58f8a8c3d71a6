// Package playback plays spoken backend responses.
//
// An [Engine] exchanges recordings for responses through a
// [transport.Transport], splits each response into segments, and plays them
// one at a time through a [Driver] in the order they arrived. It keeps a
// waveform indicator and an observable [Mode] in step with playback.
//
// All engine state is owned by a single loop goroutine. Public methods only
// post messages to it and never block on playback; callbacks are invoked on
// the loop and must not block either.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/transport"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrCapture is matched by errors reporting that no recording could be
	// captured.
	ErrCapture = errors.New("capture failed")
	// ErrTransport is matched by errors reporting that no usable response was
	// obtained from the backend.
	ErrTransport = errors.New("transport failed")
	// ErrResponse is matched by errors reporting a response that ended without
	// a single segment played to completion.
	ErrResponse = errors.New("response produced no audio")
	// ErrSuperseded is set on segments torn down by a newer recording.
	ErrSuperseded = errors.New("superseded by a newer recording")

	ErrClosed              = errors.New("engine closed")
	ErrRecordingInProgress = errors.New("recording already in progress")
	ErrEmptyRecording      = errors.New("empty recording")
)

type Engine struct {
	driver    Driver
	resources ResourceManager
	transport transport.Transport

	releaseGrace time.Duration
	errorHold    time.Duration
	waveformBars int
	callbacks    callbacks

	mode      atomic.Int32
	closed    atomic.Bool
	closeOnce sync.Once
	inbox     *mailbox
	done      chan struct{}

	// Everything below is owned by the loop goroutine.
	emit        eventEmitter
	session     *session
	lastToken   uint64
	releaser    *releaser
	visual      *visualizer
	errorTimer  *time.Timer
	unsubscribe func()
	metrics     engineMetrics
}

// session is one recording→response exchange. token identifies it to work
// running off the loop; results carrying another token are stale.
type session struct {
	token      uint64
	responseID string
	ctx        context.Context
	cancel     context.CancelFunc
	span       trace.Span

	segments   []*segment
	next       int
	active     *segment
	ingestDone bool
	ingestErr  error
	completed  int
	failed     int
}

// NewEngine starts an engine that exclusively owns driver. Unless
// [WithResourceManager] is given, handles live in a fresh [audio.Store].
func NewEngine(driver Driver, opts ...EngineOption) *Engine {
	e := &Engine{
		driver:       driver,
		resources:    audio.NewStore(),
		releaseGrace: DefaultReleaseGrace,
		errorHold:    DefaultErrorHold,
		waveformBars: defaultWaveformBars,
		inbox:        newMailbox(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.emit = newCallbackEventEmitter(e.callbacks)
	e.releaser = newReleaser(e.resources, e.releaseGrace)
	e.visual = newVisualizer(e.waveformBars)
	e.errorTimer = time.NewTimer(time.Hour)
	e.errorTimer.Stop()
	e.metrics = newEngineMetrics(e.resources)
	e.unsubscribe = driver.Subscribe(func(event audio.PlaybackEvent) {
		e.inbox.post(playbackEventMsg{event: event})
	})

	go e.run()
	return e
}

// Mode returns the most recently entered mode.
func (e *Engine) Mode() Mode {
	return Mode(e.mode.Load())
}

// BeginRecording enters the recording mode. A response that is still loading
// or playing is superseded: its playback stops and its segments are released
// before anything else happens.
func (e *Engine) BeginRecording() error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.Mode().CanRecord() {
		return ErrRecordingInProgress
	}

	e.inbox.post(beginRecordingMsg{})
	return nil
}

// CaptureFailed reports that the recording started with [Engine.BeginRecording]
// could not be captured.
func (e *Engine) CaptureFailed(err error) {
	if e.closed.Load() {
		return
	}
	e.inbox.post(captureFailedMsg{err: err})
}

// Submit hands a finished recording to the backend and returns the id that
// correlates the events of its response. Any unfinished previous response is
// superseded.
func (e *Engine) Submit(recording Recording, selection Selection) (string, error) {
	if e.closed.Load() {
		return "", ErrClosed
	}
	if len(recording.Payload) == 0 {
		e.inbox.post(captureFailedMsg{err: ErrEmptyRecording})
		return "", fmt.Errorf("%w: %w", ErrCapture, ErrEmptyRecording)
	}

	responseID := uuid.NewString()
	e.inbox.post(submitMsg{responseID: responseID, recording: recording, selection: selection})
	return responseID, nil
}

// Close stops playback, releases every handle the engine holds and waits for
// the loop to exit. It must not be called from a callback.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.inbox.post(closeMsg{})
	})
	<-e.done
	return nil
}

func (e *Engine) run() {
	defer close(e.done)

	for {
		select {
		case <-e.inbox.signal:
			for _, msg := range e.inbox.drain() {
				if !e.handle(msg) {
					return
				}
			}
		case <-e.releaser.C():
			e.releaser.drainDue()
		case <-e.errorTimer.C:
			if e.Mode() == ModeError {
				e.setMode(ModeIdle)
			}
		}
	}
}

func (e *Engine) handle(msg message) (keepRunning bool) {
	switch msg := msg.(type) {
	case beginRecordingMsg:
		e.beginRecording()
	case captureFailedMsg:
		e.captureFailed(msg.err)
	case submitMsg:
		e.startSession(msg)
	case chunkMsg:
		e.enqueue(msg)
	case ingestEndedMsg:
		e.ingestEnded(msg)
	case playResultMsg:
		e.playResult(msg)
	case playbackEventMsg:
		e.playbackEvent(msg.event)
	case closeMsg:
		e.shutdown()
		return false
	}
	return true
}

func (e *Engine) beginRecording() {
	if e.Mode() == ModeRecording {
		return
	}

	e.supersede()
	e.errorTimer.Stop()
	e.setMode(ModeRecording)
}

func (e *Engine) captureFailed(cause error) {
	err := fmt.Errorf("%w: %w", ErrCapture, cause)
	logger.Warn("recording failed", "error", err)
	e.emit(events.NewRecordingFailed(err))

	if e.Mode() == ModeRecording {
		e.enterError()
	}
}

func (e *Engine) shutdown() {
	e.supersede()
	e.releaser.drainAll()
	e.errorTimer.Stop()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.metrics.unregister()
}

func (e *Engine) setMode(mode Mode) {
	previous := Mode(e.mode.Swap(int32(mode)))
	if previous == mode {
		return
	}

	logger.Debug("mode changed", "from", previous.String(), "to", mode.String())
	e.emit(events.NewModeChanged(previous.String(), mode.String()))
}

// enterError shows the error mode for the configured hold, then returns to
// idle.
func (e *Engine) enterError() {
	e.setMode(ModeError)
	if e.errorHold <= 0 {
		e.setMode(ModeIdle)
		return
	}
	e.errorTimer.Reset(e.errorHold)
}
