// Package miniaudio plays responses and records clips through miniaudio.
package miniaudio

import (
	"context"
	"fmt"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

const defaultStartTimeout = 2 * time.Second

// Client owns one playback device and one capture device. It satisfies the
// engine's playback driver contract.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playback     playbackClient
	capture      captureClient

	playbackEncoding audio.EncodingInfo
	captureEncoding  audio.EncodingInfo
	withoutCapture   bool
}

type ClientOption func(*Client)

// WithPlaybackEncoding sets the encoding the playback device starts with. It
// is switched whenever a source needs another one.
func WithPlaybackEncoding(encoding audio.EncodingInfo) ClientOption {
	return func(c *Client) { c.playbackEncoding = encoding }
}

func WithCaptureEncoding(encoding audio.EncodingInfo) ClientOption {
	return func(c *Client) { c.captureEncoding = encoding }
}

// WithStartTimeout bounds how long Play waits for the device to pull the
// first audio of a source.
func WithStartTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.playback.startTimeout = timeout }
}

// WithoutCapture skips opening the microphone.
func WithoutCapture() ClientOption {
	return func(c *Client) { c.withoutCapture = true }
}

// NewClient opens the default devices. media resolves the handles passed to
// Load; it is usually the engine's handle store.
func NewClient(media audio.MediaOpener, opts ...ClientOption) (*Client, error) {
	client := &Client{
		playbackEncoding: audio.GetDefaultEncodingInfo(),
		captureEncoding: audio.EncodingInfo{
			SampleRate: audio.CaptureSampleRate,
			Channels:   audio.DefaultChannels,
			Format:     audio.EncodingLinear16,
		},
	}
	for _, opt := range opts {
		opt(client)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	client.audioContext = audioCtx

	if err := client.playback.Init(audioCtx, media, client.playbackEncoding); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if !client.withoutCapture {
		if err := client.capture.Init(audioCtx, client.captureEncoding); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to initialize capture client: %w", err)
		}
	}

	return client, nil
}

func (c *Client) Load(h audio.Handle) error {
	return c.playback.Load(h)
}

func (c *Client) Play(ctx context.Context) error {
	return c.playback.Play(ctx)
}

func (c *Client) Stop() {
	c.playback.Stop()
}

func (c *Client) Subscribe(listener func(audio.PlaybackEvent)) func() {
	return c.playback.Subscribe(listener)
}

func (c *Client) StartRecording(_ context.Context) error {
	return c.capture.Start()
}

// StopRecording ends the recording and returns the clip as audio/wav.
func (c *Client) StopRecording() (audio.Media, error) {
	return c.capture.Stop()
}

func (c *Client) Close() {
	_ = c.capture.Uninit()
	_ = c.playback.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}
