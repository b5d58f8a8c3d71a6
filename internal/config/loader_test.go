package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/koscakluka/ema-voice/internal/config"
)

func noEnv(string) (string, bool) { return "", false }

func TestLoadFromReader_EmptyUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""), noEnv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.Transport != config.TransportHTTP {
		t.Errorf("transport = %q, want http", cfg.Backend.Transport)
	}
	if cfg.Playback.ReleaseGrace != 100*time.Millisecond {
		t.Errorf("release grace = %s, want 100ms", cfg.Playback.ReleaseGrace)
	}
	if cfg.Playback.ErrorHold != 2*time.Second {
		t.Errorf("error hold = %s, want 2s", cfg.Playback.ErrorHold)
	}
	if cfg.Playback.WaveformBars != 32 {
		t.Errorf("waveform bars = %d, want 32", cfg.Playback.WaveformBars)
	}
}

func TestLoadFromReader_OverridesKeepUnsetDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  url: wss://voice.example.com/ws
  transport: websocket
  voice_id: bf_emma
playback:
  error_hold: 500ms
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml), noEnv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.VoiceID != "bf_emma" {
		t.Errorf("voice = %q, want bf_emma", cfg.Backend.VoiceID)
	}
	if cfg.Backend.SessionID != "default" {
		t.Errorf("session = %q, want default", cfg.Backend.SessionID)
	}
	if cfg.Playback.ErrorHold != 500*time.Millisecond {
		t.Errorf("error hold = %s, want 500ms", cfg.Playback.ErrorHold)
	}
	if cfg.Playback.ReleaseGrace != 100*time.Millisecond {
		t.Errorf("release grace = %s, want default 100ms", cfg.Playback.ReleaseGrace)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  ulr: http://localhost:8000
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml), noEnv); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReader_EnvOverrides(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		config.EnvBackendURL: "https://backend.internal",
		config.EnvSessionID:  "kitchen",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg, err := config.LoadFromReader(strings.NewReader("backend:\n  url: http://ignored\n"), lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.URL != "https://backend.internal" {
		t.Errorf("url = %q, want env value", cfg.Backend.URL)
	}
	if cfg.Backend.SessionID != "kitchen" {
		t.Errorf("session = %q, want kitchen", cfg.Backend.SessionID)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  url: http://localhost:8000
  transport: websocket
audio:
  sink: alsa
playback:
  release_grace: -1s
  waveform_bars: 0
log:
  level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml), noEnv)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"ws or wss", "audio.sink", "release_grace", "waveform_bars", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestDefault_ReturnsIndependentCopies(t *testing.T) {
	t.Parallel()
	a := config.Default()
	a.Backend.URL = "http://changed"
	if b := config.Default(); b.Backend.URL == "http://changed" {
		t.Fatal("Default shares state between calls")
	}
}

func TestSchema_NamesYAMLFields(t *testing.T) {
	t.Parallel()
	data, err := config.Schema()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc map[string]any
	if err := sonic.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	for _, want := range []string{"release_grace", "waveform_bars", "session_id"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema should mention %q", want)
		}
	}
}
