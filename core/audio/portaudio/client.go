// Package portaudio plays responses and records clips through blocking
// PortAudio streams.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voice/core/audio"
)

const (
	defaultFramesPerBuffer = 2048
	defaultStartTimeout    = 2 * time.Second
)

// Client writes the loaded source to an output stream from its own
// goroutine. It satisfies the engine's playback driver contract.
type Client struct {
	media           audio.MediaOpener
	framesPerBuffer int
	startTimeout    time.Duration

	// streamMu is held while writing, so the stream is never swapped under a
	// blocking Write.
	streamMu sync.Mutex
	stream   *portaudio.Stream
	encoding audio.EncodingInfo
	out      []int16

	mu      sync.Mutex
	handle  audio.Handle
	pcm     []byte
	pos     int
	playing bool
	started chan struct{}

	cycle  audio.Cycle
	events *audio.Dispatcher
	wake   chan struct{}
	done   chan struct{}

	recorder recorder
	closed   sync.Once
}

type ClientOption func(*Client)

func WithFramesPerBuffer(frames int) ClientOption {
	return func(c *Client) {
		if frames > 0 {
			c.framesPerBuffer = frames
		}
	}
}

func WithStartTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.startTimeout = timeout
		}
	}
}

func NewClient(media audio.MediaOpener, opts ...ClientOption) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	c := &Client{
		media:           media,
		framesPerBuffer: defaultFramesPerBuffer,
		startTimeout:    defaultStartTimeout,
		events:          audio.NewDispatcher(),
		wake:            make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.recorder.framesPerBuffer = c.framesPerBuffer

	c.streamMu.Lock()
	err := c.openStreamLocked(audio.GetDefaultEncodingInfo())
	c.streamMu.Unlock()
	if err != nil {
		c.events.Close()
		_ = portaudio.Terminate()
		return nil, err
	}

	go c.writeLoop()
	return c, nil
}

func (c *Client) openStreamLocked(encoding audio.EncodingInfo) error {
	if c.stream != nil {
		_ = c.stream.Stop()
		_ = c.stream.Close()
		c.stream = nil
	}

	out := make([]int16, c.framesPerBuffer*encoding.Channels)
	stream, err := portaudio.OpenDefaultStream(0, encoding.Channels, float64(encoding.SampleRate), c.framesPerBuffer, out)
	if err != nil {
		return fmt.Errorf("failed to open PortAudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("failed to start PortAudio stream: %w", err)
	}

	c.stream = stream
	c.out = out
	c.encoding = encoding
	return nil
}

func (c *Client) Load(h audio.Handle) error {
	media, err := c.media.Open(h)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", h, err)
	}
	pcm, encoding, err := audio.DecodeMedia(media)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", h, err)
	}

	c.halt()

	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.stream == nil || encoding != c.encoding {
		if err := c.openStreamLocked(encoding); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.handle = h
	c.pcm = pcm
	c.pos = 0
	c.mu.Unlock()
	c.cycle.Reset(h)
	return nil
}

func (c *Client) Play(ctx context.Context) error {
	c.mu.Lock()
	h := c.handle
	if h.IsZero() || c.pcm == nil {
		c.mu.Unlock()
		return &audio.PlaybackStartError{Handle: h, Err: errors.New("nothing loaded")}
	}
	started := make(chan struct{})
	c.started = started
	c.playing = true
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}

	timer := time.NewTimer(c.startTimeout)
	defer timer.Stop()
	select {
	case <-started:
		return nil
	case <-ctx.Done():
		c.abort(h)
		return &audio.PlaybackStartError{Handle: h, Err: ctx.Err()}
	case <-timer.C:
		c.abort(h)
		return &audio.PlaybackStartError{Handle: h, Err: errors.New("stream did not accept audio in time")}
	}
}

func (c *Client) Stop() {
	c.halt()
}

func (c *Client) Subscribe(listener func(audio.PlaybackEvent)) func() {
	return c.events.Subscribe(listener)
}

func (c *Client) halt() {
	c.cycle.Suppress()
	c.mu.Lock()
	c.playing = false
	c.started = nil
	c.pcm = nil
	c.pos = 0
	c.mu.Unlock()
}

func (c *Client) abort(h audio.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != h {
		return
	}
	c.cycle.Suppress()
	c.playing = false
	c.started = nil
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		for c.writeNext() {
		}
	}
}

// writeNext writes one buffer of the loaded source and reports whether more
// is left to write.
func (c *Client) writeNext() bool {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	c.mu.Lock()
	if !c.playing || c.stream == nil {
		c.mu.Unlock()
		return false
	}
	if c.started != nil {
		close(c.started)
		c.started = nil
	}

	bufferSize := len(c.out) * 2
	chunk := c.pcm[c.pos:min(c.pos+bufferSize, len(c.pcm))]
	c.pos += len(chunk)
	clear(c.out)
	_ = binary.Read(bytes.NewReader(chunk[:len(chunk)-len(chunk)%2]), binary.LittleEndian, c.out[:len(chunk)/2])
	h := c.handle
	ended := c.pos >= len(c.pcm)
	if ended {
		c.playing = false
	}
	position := audio.PlaybackEvent{
		Kind:   audio.PlaybackPosition,
		Handle: h,
		Played: c.encoding.Duration(c.pos),
		Total:  c.encoding.Duration(len(c.pcm)),
		Level:  audio.Level(chunk),
	}
	c.mu.Unlock()

	if err := c.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
		c.mu.Lock()
		c.playing = false
		c.mu.Unlock()
		if c.cycle.Terminate(h) {
			c.events.Post(audio.PlaybackEvent{
				Kind:   audio.PlaybackFailed,
				Handle: h,
				Err:    fmt.Errorf("%w: %w", audio.ErrPlaybackRuntime, err),
			})
		}
		return false
	}

	c.events.Post(position)
	if ended {
		if c.cycle.Terminate(h) {
			c.events.Post(audio.PlaybackEvent{Kind: audio.PlaybackEnded, Handle: h, Played: position.Played, Total: position.Total})
		}
		return false
	}
	return true
}

func (c *Client) StartRecording(_ context.Context) error {
	return c.recorder.start()
}

// StopRecording ends the recording and returns the clip as audio/wav.
func (c *Client) StopRecording() (audio.Media, error) {
	return c.recorder.stop()
}

func (c *Client) Close() {
	c.closed.Do(func() {
		c.halt()
		close(c.done)
		_, _ = c.recorder.stop()

		c.streamMu.Lock()
		if c.stream != nil {
			_ = c.stream.Stop()
			_ = c.stream.Close()
			c.stream = nil
		}
		c.streamMu.Unlock()

		c.events.Close()
		_ = portaudio.Terminate()
	})
}
