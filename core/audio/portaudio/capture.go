package portaudio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voice/core/audio"
)

var errNotRecording = errors.New("not recording")

// recorder reads the default input stream into memory while recording.
type recorder struct {
	framesPerBuffer int

	mu     sync.Mutex
	stream *portaudio.Stream
	pcm    []byte
	done   chan error
}

func (r *recorder) start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != nil {
		return nil
	}

	in := make([]int16, r.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.CaptureSampleRate, r.framesPerBuffer, in)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	r.stream = stream
	r.pcm = nil
	r.done = make(chan error, 1)
	go r.read(stream, in, r.done)
	return nil
}

func (r *recorder) read(stream *portaudio.Stream, in []int16, done chan<- error) {
	for {
		if err := stream.Read(); err != nil {
			if !errors.Is(err, portaudio.InputOverflowed) {
				done <- err
				return
			}
		}

		r.mu.Lock()
		if r.stream != stream {
			r.mu.Unlock()
			done <- nil
			return
		}
		for _, sample := range in {
			r.pcm = append(r.pcm, byte(sample), byte(uint16(sample)>>8))
		}
		r.mu.Unlock()
	}
}

func (r *recorder) stop() (audio.Media, error) {
	r.mu.Lock()
	stream := r.stream
	done := r.done
	r.stream = nil
	r.mu.Unlock()
	if stream == nil {
		return audio.Media{}, errNotRecording
	}

	// Stopping makes the pending Read return.
	_ = stream.Stop()
	readErr := <-done
	_ = stream.Close()

	r.mu.Lock()
	pcm := r.pcm
	r.pcm = nil
	r.mu.Unlock()

	if len(pcm) == 0 {
		if readErr != nil {
			return audio.Media{}, fmt.Errorf("failed to read input stream: %w", readErr)
		}
		return audio.Media{}, audio.ErrEmptyPayload
	}

	encoding := audio.EncodingInfo{SampleRate: audio.CaptureSampleRate, Channels: 1, Format: audio.EncodingLinear16}
	return audio.Media{Payload: audio.EncodeWAV(pcm, encoding), MIMEType: "audio/wav"}, nil
}
