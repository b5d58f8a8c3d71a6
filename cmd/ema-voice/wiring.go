package main

import (
	"context"
	"fmt"

	playback "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/audio/miniaudio"
	"github.com/koscakluka/ema-voice/core/audio/portaudio"
	"github.com/koscakluka/ema-voice/core/transport"
	"github.com/koscakluka/ema-voice/core/transport/httpaudio"
	"github.com/koscakluka/ema-voice/core/transport/wsaudio"
	"github.com/koscakluka/ema-voice/internal/config"
)

// sink plays responses for the engine and records clips for the user.
type sink interface {
	playback.Driver
	StartRecording(ctx context.Context) error
	StopRecording() (audio.Media, error)
	Close()
}

var (
	_ sink = (*miniaudio.Client)(nil)
	_ sink = (*portaudio.Client)(nil)
)

func openSink(cfg *config.Config, media audio.MediaOpener) (sink, error) {
	switch cfg.Audio.Sink {
	case config.SinkPortAudio:
		client, err := portaudio.NewClient(media)
		if err != nil {
			return nil, fmt.Errorf("open portaudio sink: %w", err)
		}
		return client, nil
	default:
		client, err := miniaudio.NewClient(media,
			miniaudio.WithPlaybackEncoding(audio.EncodingInfo{
				SampleRate: cfg.Audio.SampleRate,
				Channels:   audio.DefaultChannels,
				Format:     audio.EncodingLinear16,
			}),
			miniaudio.WithCaptureEncoding(audio.EncodingInfo{
				SampleRate: cfg.Audio.CaptureSampleRate,
				Channels:   audio.DefaultChannels,
				Format:     audio.EncodingLinear16,
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("open miniaudio sink: %w", err)
		}
		return client, nil
	}
}

func openTransport(cfg *config.Config) (transport.Transport, error) {
	switch cfg.Backend.Transport {
	case config.TransportWebSocket:
		return wsaudio.NewClient(cfg.Backend.URL)
	default:
		var opts []httpaudio.ClientOption
		if cfg.Backend.Buffered {
			opts = append(opts, httpaudio.WithBufferedResponses())
		}
		return httpaudio.NewClient(cfg.Backend.URL, opts...)
	}
}
