package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/bytedance/sonic"
	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"
)

const (
	EnvBackendURL = "EMA_VOICE_BACKEND_URL"
	EnvSessionID  = "EMA_VOICE_SESSION_ID"
	EnvVoiceID    = "EMA_VOICE_VOICE_ID"
)

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if err := copier.CopyWithOption(cfg, &defaults, copier.Option{DeepCopy: true}); err != nil {
		// Config holds no types copier cannot copy.
		panic(fmt.Sprintf("config: copy defaults: %v", err))
	}
	return cfg
}

// Load reads the YAML configuration file at path over the defaults, applies
// environment overrides and validates the result. An empty path loads the
// defaults alone.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		applyEnv(cfg, os.LookupEnv)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults, applies the
// overrides found through lookupEnv and validates the result.
func LoadFromReader(r io.Reader, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	if lookupEnv != nil {
		applyEnv(cfg, lookupEnv)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookupEnv func(string) (string, bool)) {
	if v, ok := lookupEnv(EnvBackendURL); ok && v != "" {
		cfg.Backend.URL = v
	}
	if v, ok := lookupEnv(EnvSessionID); ok && v != "" {
		cfg.Backend.SessionID = v
	}
	if v, ok := lookupEnv(EnvVoiceID); ok && v != "" {
		cfg.Backend.VoiceID = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Backend.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("backend.transport %q is invalid; valid values: http, websocket", cfg.Backend.Transport))
	}
	if cfg.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required"))
	} else if u, err := url.Parse(cfg.Backend.URL); err != nil {
		errs = append(errs, fmt.Errorf("backend.url %q is invalid: %w", cfg.Backend.URL, err))
	} else {
		switch {
		case cfg.Backend.Transport == TransportHTTP && u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, fmt.Errorf("backend.url %q must use http or https with the http transport", cfg.Backend.URL))
		case cfg.Backend.Transport == TransportWebSocket && u.Scheme != "ws" && u.Scheme != "wss":
			errs = append(errs, fmt.Errorf("backend.url %q must use ws or wss with the websocket transport", cfg.Backend.URL))
		}
	}
	if cfg.Backend.SessionID == "" || cfg.Backend.ModelID == "" || cfg.Backend.VoiceID == "" {
		errs = append(errs, errors.New("backend.session_id, backend.model_id and backend.voice_id are required"))
	}

	if !cfg.Audio.Sink.IsValid() {
		errs = append(errs, fmt.Errorf("audio.sink %q is invalid; valid values: miniaudio, portaudio", cfg.Audio.Sink))
	}
	if cfg.Audio.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is below 8000", cfg.Audio.SampleRate))
	}
	if cfg.Audio.CaptureSampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio.capture_sample_rate %d is below 8000", cfg.Audio.CaptureSampleRate))
	}

	if cfg.Playback.ReleaseGrace < 0 {
		errs = append(errs, fmt.Errorf("playback.release_grace %s must not be negative", cfg.Playback.ReleaseGrace))
	}
	if cfg.Playback.ErrorHold < 0 {
		errs = append(errs, fmt.Errorf("playback.error_hold %s must not be negative", cfg.Playback.ErrorHold))
	}
	if cfg.Playback.WaveformBars < 1 || cfg.Playback.WaveformBars > 256 {
		errs = append(errs, fmt.Errorf("playback.waveform_bars %d is out of range [1, 256]", cfg.Playback.WaveformBars))
	}

	if !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	return errors.Join(errs...)
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{FieldNameTag: "yaml", DoNotReference: true}
	schema := reflector.Reflect(&Config{})
	schema.Title = "ema-voice configuration"

	return sonic.ConfigStd.MarshalIndent(schema, "", "  ")
}
