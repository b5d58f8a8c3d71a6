package playback

import (
	"context"

	"github.com/koscakluka/ema-voice/core/audio"
)

// Driver owns a single playback sink.
//
// Every Load followed by a successful Play produces exactly one terminal
// event (ended or failed) for the loaded handle. A Play that returns an error
// produces none, and neither does a cycle cut short by Stop.
type Driver interface {
	// Load binds the sink to the handle's source and rewinds it.
	Load(audio.Handle) error
	// Play blocks until playback has verifiably started. Refusals are
	// reported as [audio.PlaybackStartError].
	Play(ctx context.Context) error
	Stop()
	Subscribe(func(audio.PlaybackEvent)) (unsubscribe func())
}

// ResourceManager turns payloads into revocable handles.
type ResourceManager interface {
	Acquire(payload []byte, mimeType string) (audio.Handle, error)
	// Release frees the handle. Releasing twice is a no-op.
	Release(audio.Handle)
}

var _ ResourceManager = (*audio.Store)(nil)
