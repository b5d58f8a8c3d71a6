package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

var errStartTimeout = errors.New("device did not request audio in time")

// playbackClient plays one loaded source at a time on a miniaudio device.
// The device keeps running between sources and plays silence while nothing
// is playing; it is reinitialized when a source needs another encoding.
type playbackClient struct {
	audioContext *malgo.AllocatedContext
	media        audio.MediaOpener
	startTimeout time.Duration

	deviceMu sync.Mutex
	device   *malgo.Device
	encoding audio.EncodingInfo

	mu      sync.Mutex
	handle  audio.Handle
	pcm     []byte
	pos     int
	playing bool
	started chan struct{}

	cycle  audio.Cycle
	events *audio.Dispatcher
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, media audio.MediaOpener, encoding audio.EncodingInfo) error {
	c.audioContext = audioContext
	c.media = media
	c.events = audio.NewDispatcher()
	if c.startTimeout <= 0 {
		c.startTimeout = defaultStartTimeout
	}

	c.deviceMu.Lock()
	defer c.deviceMu.Unlock()
	return c.initDeviceLocked(encoding)
}

func (c *playbackClient) initDeviceLocked(encoding audio.EncodingInfo) error {
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	format := malgo.FormatS16
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(encoding.SampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(encoding.Channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(encoding.SampleRate / 10) // ~100ms of audio
	config.Periods = 4

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: c.processAudio(malgo.SampleSizeInBytes(format) * encoding.Channels),
		Stop: c.deviceStopped,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	c.device = device
	c.encoding = encoding
	return nil
}

func (c *playbackClient) Load(h audio.Handle) error {
	media, err := c.media.Open(h)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", h, err)
	}
	pcm, encoding, err := audio.DecodeMedia(media)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", h, err)
	}

	c.halt()

	c.deviceMu.Lock()
	defer c.deviceMu.Unlock()
	if c.device == nil || encoding != c.encoding {
		if err := c.initDeviceLocked(encoding); err != nil {
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

func (c *playbackClient) Play(ctx context.Context) error {
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

	c.deviceMu.Lock()
	var err error
	if c.device == nil {
		err = errors.New("device not initialized")
	} else if !c.device.IsStarted() {
		err = c.device.Start()
	}
	c.deviceMu.Unlock()
	if err != nil {
		c.abort(h)
		return &audio.PlaybackStartError{Handle: h, Err: err}
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
		return &audio.PlaybackStartError{Handle: h, Err: errStartTimeout}
	}
}

// Stop silences the device and drops the loaded source without reporting a
// terminal event for it.
func (c *playbackClient) Stop() {
	c.halt()
}

func (c *playbackClient) Subscribe(listener func(audio.PlaybackEvent)) func() {
	return c.events.Subscribe(listener)
}

func (c *playbackClient) halt() {
	c.cycle.Suppress()
	c.mu.Lock()
	c.playing = false
	c.started = nil
	c.pcm = nil
	c.pos = 0
	c.mu.Unlock()
}

// abort undoes a play that did not start, unless another source was loaded
// meanwhile.
func (c *playbackClient) abort(h audio.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != h {
		return
	}
	c.cycle.Suppress()
	c.playing = false
	c.started = nil
}

func (c *playbackClient) Uninit() error {
	c.halt()

	c.deviceMu.Lock()
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.deviceMu.Unlock()

	if c.events != nil {
		c.events.Close()
	}
	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := min(int(frameCount)*bytesPerFrame, len(pOutput))

		c.mu.Lock()
		if !c.playing {
			c.mu.Unlock()
			return
		}
		if c.started != nil {
			close(c.started)
			c.started = nil
		}

		n := copy(pOutput[:need], c.pcm[c.pos:])
		chunk := c.pcm[c.pos : c.pos+n]
		c.pos += n
		h := c.handle
		ended := c.pos >= len(c.pcm)
		event := audio.PlaybackEvent{
			Kind:   audio.PlaybackPosition,
			Handle: h,
			Played: c.encoding.Duration(c.pos),
			Total:  c.encoding.Duration(len(c.pcm)),
			Level:  audio.Level(chunk),
		}
		if ended {
			c.playing = false
		}
		c.mu.Unlock()

		c.events.Post(event)
		if ended && c.cycle.Terminate(h) {
			c.events.Post(audio.PlaybackEvent{Kind: audio.PlaybackEnded, Handle: h, Played: event.Played, Total: event.Total})
		}
	}
}

// deviceStopped fires when the device stops, which only happens on purpose
// in Uninit or through a reinit. Anything else is a device failure.
func (c *playbackClient) deviceStopped() {
	c.mu.Lock()
	h := c.handle
	playing := c.playing
	c.playing = false
	c.mu.Unlock()

	if playing && c.cycle.Terminate(h) {
		c.events.Post(audio.PlaybackEvent{
			Kind:   audio.PlaybackFailed,
			Handle: h,
			Err:    fmt.Errorf("%w: playback device stopped", audio.ErrPlaybackRuntime),
		})
	}
}
