// Package config provides the configuration schema and loader for the
// ema-voice client.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Transport selects how recordings are exchanged with the backend.
type Transport string

const (
	TransportHTTP      Transport = "http"
	TransportWebSocket Transport = "websocket"
)

func (t Transport) IsValid() bool {
	return t == TransportHTTP || t == TransportWebSocket
}

// Sink selects the audio library used for playback and capture.
type Sink string

const (
	SinkMiniaudio Sink = "miniaudio"
	SinkPortAudio Sink = "portaudio"
)

func (s Sink) IsValid() bool {
	return s == SinkMiniaudio || s == SinkPortAudio
}

// Config is the root configuration structure.
type Config struct {
	Backend  BackendConfig  `yaml:"backend" json:"backend"`
	Audio    AudioConfig    `yaml:"audio" json:"audio"`
	Playback PlaybackConfig `yaml:"playback" json:"playback"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// BackendConfig locates the inference backend and selects what it answers
// with.
type BackendConfig struct {
	// URL is the backend base URL. http(s) for the HTTP transport, ws(s) for
	// the WebSocket transport.
	URL       string    `yaml:"url" json:"url" jsonschema:"description=Backend base URL"`
	Transport Transport `yaml:"transport" json:"transport" jsonschema:"enum=http,enum=websocket"`
	// Buffered reads HTTP replies whole instead of streaming them.
	Buffered  bool   `yaml:"buffered" json:"buffered"`
	SessionID string `yaml:"session_id" json:"session_id"`
	ModelID   string `yaml:"model_id" json:"model_id"`
	VoiceID   string `yaml:"voice_id" json:"voice_id"`
}

type AudioConfig struct {
	Sink Sink `yaml:"sink" json:"sink" jsonschema:"enum=miniaudio,enum=portaudio"`
	// SampleRate is the rate the playback device opens at. Sources at other
	// rates reopen the device.
	SampleRate int `yaml:"sample_rate" json:"sample_rate" jsonschema:"minimum=8000"`
	// CaptureSampleRate is the rate recordings are made at.
	CaptureSampleRate int `yaml:"capture_sample_rate" json:"capture_sample_rate" jsonschema:"minimum=8000"`
}

type PlaybackConfig struct {
	// ReleaseGrace keeps a finished segment's audio alive before freeing it.
	ReleaseGrace time.Duration `yaml:"release_grace" json:"release_grace"`
	// ErrorHold is how long the error indicator stays up.
	ErrorHold    time.Duration `yaml:"error_hold" json:"error_hold"`
	WaveformBars int           `yaml:"waveform_bars" json:"waveform_bars" jsonschema:"minimum=1,maximum=256"`
}

type LogConfig struct {
	Level LogLevel `yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	// File receives the log; the terminal belongs to the UI.
	File string `yaml:"file" json:"file"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9464".
	Addr string `yaml:"addr" json:"addr"`
}

var defaults = Config{
	Backend: BackendConfig{
		URL:       "http://localhost:8000",
		Transport: TransportHTTP,
		SessionID: "default",
		ModelID:   "default",
		VoiceID:   "af_heart",
	},
	Audio: AudioConfig{
		Sink:              SinkMiniaudio,
		SampleRate:        24000,
		CaptureSampleRate: 16000,
	},
	Playback: PlaybackConfig{
		ReleaseGrace: 100 * time.Millisecond,
		ErrorHold:    2 * time.Second,
		WaveformBars: 32,
	},
	Log: LogConfig{
		Level: LogInfo,
		File:  "ema-voice.log",
	},
}
