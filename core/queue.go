package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (e *Engine) startSession(msg submitMsg) {
	e.supersede()
	e.errorTimer.Stop()

	e.lastToken++
	ctx, cancel := context.WithCancel(context.Background())
	ctx, span := tracer.Start(ctx, "play response", trace.WithAttributes(
		attribute.String("response_id", msg.responseID),
		attribute.String("voice_id", msg.selection.VoiceID),
	))
	s := &session{
		token:      e.lastToken,
		responseID: msg.responseID,
		ctx:        ctx,
		cancel:     cancel,
		span:       span,
	}
	e.session = s

	e.setMode(ModeAwaitingResponse)
	e.emit(events.NewSessionStarted(s.responseID))
	go e.ingest(ctx, s.token, msg.recording, msg.selection)
}

// current returns the running session if token still identifies it.
func (e *Engine) current(token uint64) *session {
	if e.session == nil || e.session.token != token {
		return nil
	}
	return e.session
}

func (e *Engine) enqueue(msg chunkMsg) {
	s := e.current(msg.token)
	if s == nil {
		return
	}

	h, err := e.resources.Acquire(msg.payload, msg.mimeType)
	if err != nil {
		logger.Warn("dropping chunk without playable source", "response_id", s.responseID, "error", err)
		return
	}

	seg := &segment{sequence: len(s.segments), state: SegmentPending, handle: h}
	s.segments = append(s.segments, seg)
	e.emit(events.NewSegmentQueued(s.responseID, seg.sequence))
	e.dispatch()
}

func (e *Engine) ingestEnded(msg ingestEndedMsg) {
	s := e.current(msg.token)
	if s == nil {
		return
	}

	s.ingestDone = true
	s.ingestErr = msg.err
	if msg.err != nil && len(s.segments) > 0 {
		logger.Warn("response stream interrupted, keeping received segments",
			"response_id", s.responseID, "segments", len(s.segments), "error", msg.err)
	}
	e.finishIfDrained()
}

// dispatch promotes the next pending segment to active unless one is already
// active. Segments whose source cannot be loaded are failed on the spot and
// the next one is tried.
func (e *Engine) dispatch() {
	s := e.session
	for s != nil && s.active == nil {
		if s.next >= len(s.segments) {
			e.finishIfDrained()
			return
		}

		seg := s.segments[s.next]
		s.next++
		seg.state = SegmentActive
		s.active = seg
		e.visual.track(seg.handle)

		if err := e.driver.Load(seg.handle); err != nil {
			e.failActive(s, &audio.PlaybackStartError{Handle: seg.handle, Err: err})
			continue
		}
		go e.play(s.ctx, s.token, seg.sequence)
	}
}

func (e *Engine) play(ctx context.Context, token uint64, sequence int) {
	err := e.driver.Play(ctx)
	e.inbox.post(playResultMsg{token: token, sequence: sequence, err: err})
}

func (e *Engine) playResult(msg playResultMsg) {
	s := e.current(msg.token)
	if s == nil || s.active == nil || s.active.sequence != msg.sequence {
		return
	}

	if msg.err != nil {
		err := msg.err
		var startErr *audio.PlaybackStartError
		if !errors.As(err, &startErr) {
			err = &audio.PlaybackStartError{Handle: s.active.handle, Err: err}
		}
		e.failActive(s, err)
		e.dispatch()
		return
	}
	e.markStarted(s, s.active)
}

func (e *Engine) playbackEvent(event audio.PlaybackEvent) {
	if event.Kind == audio.PlaybackPosition {
		if bars, progress, ok := e.visual.observe(event); ok {
			e.emit(events.NewWaveformUpdated(bars, progress))
		}
		return
	}

	s := e.session
	if s == nil || s.active == nil || s.active.handle != event.Handle {
		logger.Debug("ignoring playback event for inactive source",
			"kind", event.Kind.String(), "handle", event.Handle.String())
		return
	}

	switch event.Kind {
	case audio.PlaybackEnded:
		// Short sources can end before the play result is processed.
		e.markStarted(s, s.active)
		e.completeActive(s)
	case audio.PlaybackFailed:
		err := event.Err
		switch {
		case err == nil:
			err = audio.ErrPlaybackRuntime
		case !errors.Is(err, audio.ErrPlaybackRuntime):
			err = fmt.Errorf("%w: %w", audio.ErrPlaybackRuntime, err)
		}
		e.failActive(s, err)
	}
	e.dispatch()
}

func (e *Engine) markStarted(s *session, seg *segment) {
	if seg.started {
		return
	}
	seg.started = true
	e.setMode(ModeSpeaking)
	e.emit(events.NewSegmentStarted(s.responseID, seg.sequence))
}

func (e *Engine) completeActive(s *session) {
	seg := s.active
	s.active = nil
	seg.state = SegmentCompleted
	s.completed++

	e.releaseSegment(seg, true)
	e.clearWaveform()
	e.metrics.segment("completed")
	e.emit(events.NewSegmentCompleted(s.responseID, seg.sequence))
}

func (e *Engine) failActive(s *session, err error) {
	seg := s.active
	s.active = nil
	seg.state = SegmentFailed
	seg.err = err
	s.failed++

	logger.Warn("segment failed", "response_id", s.responseID, "sequence", seg.sequence, "error", err)
	e.releaseSegment(seg, false)
	e.clearWaveform()
	e.metrics.segment("failed")
	e.emit(events.NewSegmentFailed(s.responseID, seg.sequence, err))
}

// releaseSegment gives up the segment's handle, at most once. Completed
// segments keep their source alive for the release grace.
func (e *Engine) releaseSegment(seg *segment, graced bool) bool {
	if seg.released {
		return false
	}
	seg.released = true

	if graced {
		e.releaser.schedule(seg.handle)
	} else {
		e.resources.Release(seg.handle)
	}
	return true
}

func (e *Engine) clearWaveform() {
	if e.visual.clear() {
		e.emit(events.NewWaveformCleared())
	}
}

// finishIfDrained ends the session once ingestion is over and every segment
// settled. A response is surfaced as an error when not a single segment
// completed, or when its last segment refused to start.
func (e *Engine) finishIfDrained() {
	s := e.session
	if s == nil || s.active != nil || s.next < len(s.segments) || !s.ingestDone {
		return
	}

	e.session = nil
	s.cancel()
	e.releaser.drainAll()
	s.span.SetAttributes(attribute.Int("segments.completed", s.completed), attribute.Int("segments.failed", s.failed))
	defer s.span.End()

	if cause, failed := responseFailure(s); failed {
		var err error
		if cause == nil {
			err = fmt.Errorf("%w: backend sent no audio", ErrResponse)
		} else {
			err = fmt.Errorf("%w: %w", ErrResponse, cause)
		}
		logger.Error("response failed", "response_id", s.responseID, "error", err)
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, "response failed")
		e.metrics.response("failed")
		e.emit(events.NewResponseFailed(s.responseID, err))
		e.enterError()
		return
	}

	e.metrics.response("completed")
	e.emit(events.NewResponseEnded(s.responseID, s.completed, s.failed))
	e.setMode(ModeIdle)
}

// supersede tears the running session down: playback stops, every segment
// that has not settled fails and releases its handle, and pending graced
// releases are flushed. Nothing of the next session runs before it returns.
func (e *Engine) supersede() {
	s := e.session
	if s == nil {
		return
	}
	e.session = nil
	s.cancel()

	if s.active != nil {
		e.driver.Stop()
		s.active = nil
	}

	released := 0
	for _, seg := range s.segments {
		if seg.settled() {
			continue
		}
		seg.state = SegmentFailed
		seg.err = ErrSuperseded
		s.failed++
		if e.releaseSegment(seg, false) {
			released++
		}
		e.emit(events.NewSegmentFailed(s.responseID, seg.sequence, ErrSuperseded))
	}
	e.releaser.drainAll()
	e.clearWaveform()

	logger.Info("response superseded", "response_id", s.responseID, "released", released)
	s.span.SetStatus(codes.Error, "superseded")
	s.span.End()
	e.metrics.superseded.Add(context.Background(), 1)
	e.emit(events.NewSessionSuperseded(s.responseID, released))
}

// responseFailure decides whether a drained session failed as a whole. A
// segment that refuses to start is skipped silently unless it is the last
// one; runtime failures only fail the response when nothing completed.
func responseFailure(s *session) (cause error, failed bool) {
	var last *segment
	if len(s.segments) > 0 {
		last = s.segments[len(s.segments)-1]
	}

	if last != nil && last.state == SegmentFailed && errors.Is(last.err, audio.ErrPlaybackStart) {
		return last.err, true
	}
	if s.completed > 0 {
		return nil, false
	}

	if s.ingestErr != nil {
		return s.ingestErr, true
	}
	if last != nil {
		return last.err, true
	}
	return nil, true
}
