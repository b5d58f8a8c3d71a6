package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	playback "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/transport"
	"github.com/koscakluka/ema-voice/internal/config"
)

type fakeSink struct {
	mu        sync.Mutex
	startErr  error
	clip      audio.Media
	recording bool
}

func (s *fakeSink) Load(audio.Handle) error    { return nil }
func (s *fakeSink) Play(context.Context) error { return nil }
func (s *fakeSink) Stop()                      {}
func (s *fakeSink) Close()                     {}

func (s *fakeSink) Subscribe(func(audio.PlaybackEvent)) (unsubscribe func()) {
	return func() {}
}

func (s *fakeSink) StartRecording(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.recording = true
	return nil
}

func (s *fakeSink) StopRecording() (audio.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
	return s.clip, nil
}

type recordingTransport struct {
	requests chan transport.Request
}

func (t *recordingTransport) Exchange(_ context.Context, req transport.Request) (*transport.Response, error) {
	t.requests <- req
	return nil, errors.New("backend offline")
}

func newTestController(t *testing.T, s *fakeSink, backend transport.Transport) (*controller, chan error) {
	t.Helper()

	surfaced := make(chan error, 8)
	engine := playback.NewEngine(s,
		playback.WithTransport(backend),
		playback.WithErrorHold(0),
		playback.WithReleaseGrace(0),
		playback.WithErrorCallback(func(err error) { surfaced <- err }),
	)
	t.Cleanup(func() { _ = engine.Close() })

	return &controller{
		engine:    engine,
		sink:      s,
		selection: playback.Selection{SessionID: "s", ModelID: "m", VoiceID: "v"},
	}, surfaced
}

func TestControllerSubmitsOnSecondPress(t *testing.T) {
	backend := &recordingTransport{requests: make(chan transport.Request, 1)}
	s := &fakeSink{clip: audio.Media{Payload: []byte("RIFF...."), MIMEType: "audio/wav"}}
	ctrl, _ := newTestController(t, s, backend)

	if err := ctrl.toggleRecording(); err != nil {
		t.Fatalf("first press failed: %v", err)
	}
	if !s.recording {
		t.Fatalf("expected the sink to be recording")
	}
	if err := ctrl.toggleRecording(); err != nil {
		t.Fatalf("second press failed: %v", err)
	}

	select {
	case req := <-backend.requests:
		if string(req.Payload) != "RIFF...." || req.MIMEType != "audio/wav" {
			t.Fatalf("unexpected clip %q (%s)", req.Payload, req.MIMEType)
		}
		if req.SessionID != "s" || req.ModelID != "m" || req.VoiceID != "v" {
			t.Fatalf("unexpected selection %+v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the recording to be submitted")
	}
}

func TestControllerSurfacesMicrophoneFailure(t *testing.T) {
	backend := &recordingTransport{requests: make(chan transport.Request, 1)}
	s := &fakeSink{startErr: errors.New("no input device")}
	ctrl, surfaced := newTestController(t, s, backend)

	if err := ctrl.toggleRecording(); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	if ctrl.recording {
		t.Fatalf("controller should not consider itself recording")
	}

	select {
	case err := <-surfaced:
		if !errors.Is(err, playback.ErrCapture) {
			t.Fatalf("expected capture error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the capture failure")
	}
}

func TestBridgeKeepsOrder(t *testing.T) {
	bridge := newUIBridge()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan tea.Msg, 16)
	go bridge.run(ctx, func(msg tea.Msg) { received <- msg })

	for i := range 10 {
		bridge.post(modeMsg{mode: playback.Mode(i % 5)})
	}
	for i := range 10 {
		select {
		case msg := <-received:
			if got := msg.(modeMsg).mode; got != playback.Mode(i%5) {
				t.Fatalf("message %d: got mode %s", i, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestModelShowsModeAndWaveform(t *testing.T) {
	m := newModel(nil, config.BackendConfig{SessionID: "s", ModelID: "m", VoiceID: "v"})

	updated, _ := m.Update(modeMsg{mode: playback.ModeSpeaking})
	updated, _ = updated.Update(waveformMsg{bars: []uint8{0, 255}, progress: 0.5})
	view := updated.View()

	if !strings.Contains(view, "SPEAKING") {
		t.Fatalf("view should show the speaking badge:\n%s", view)
	}
	if !strings.Contains(view, "▁█") {
		t.Fatalf("view should show the waveform:\n%s", view)
	}

	updated, _ = updated.Update(waveformMsg{})
	if strings.Contains(updated.View(), "▁█") {
		t.Fatalf("cleared waveform should not be drawn")
	}
}

func TestModelClearsErrorOnRecording(t *testing.T) {
	m := newModel(nil, config.BackendConfig{})

	updated, _ := m.Update(errorMsg{err: errors.New("backend sent no audio")})
	if !strings.Contains(updated.View(), "backend sent no audio") {
		t.Fatalf("error should be shown")
	}
	updated, _ = updated.Update(modeMsg{mode: playback.ModeRecording})
	if strings.Contains(updated.View(), "backend sent no audio") {
		t.Fatalf("error should be cleared once recording starts")
	}
}
