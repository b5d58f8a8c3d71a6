package miniaudio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

var errNotRecording = errors.New("not recording")

// captureClient records the microphone into memory between StartRecording
// and StopRecording.
type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	encoding     audio.EncodingInfo

	mu        sync.Mutex
	recording bool
	pcm       []byte
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * encoding.Channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(encoding.SampleRate)
	config.Capture.Format = format
	config.Capture.Channels = uint32(encoding.Channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = 480
	config.Periods = 3

	c.audioContext = audioContext
	c.encoding = encoding

	var err error
	c.device, err = malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}

			c.mu.Lock()
			if c.recording {
				c.pcm = append(c.pcm, pInput[:n]...)
			}
			c.mu.Unlock()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

func (c *captureClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.pcm = nil
	c.recording = true
	if c.device.IsStarted() {
		return nil
	}
	if err := c.device.Start(); err != nil {
		c.recording = false
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

// Stop ends the recording and returns it as a WAV clip.
func (c *captureClient) Stop() (audio.Media, error) {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return audio.Media{}, errNotRecording
	}
	c.recording = false
	pcm := c.pcm
	c.pcm = nil
	device := c.device
	c.mu.Unlock()

	// Stop waits for the data callback, which takes the lock.
	if device != nil && device.IsStarted() {
		if err := device.Stop(); err != nil {
			return audio.Media{}, fmt.Errorf("failed to stop capture device: %w", err)
		}
	}

	if len(pcm) == 0 {
		return audio.Media{}, audio.ErrEmptyPayload
	}
	return audio.Media{Payload: audio.EncodeWAV(pcm, c.encoding), MIMEType: "audio/wav"}, nil
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	device := c.device
	c.device = nil
	c.recording = false
	c.pcm = nil
	c.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	return nil
}
