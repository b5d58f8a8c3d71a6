package events

const (
	// KindModeChanged identifies a change of the engine's observable mode.
	KindModeChanged Kind = "playback.mode_changed"
	// KindRecordingFailed identifies a capture failure surfaced to the user.
	KindRecordingFailed Kind = "playback.recording_failed"
)

// ModeChanged carries the engine mode transition. Mode names are the
// lower-case names used by the record button and indicator
// (idle, recording, awaiting_response, speaking, error).
type ModeChanged struct {
	Base
	Previous string
	Mode     string
}

// NewModeChanged creates a mode changed event.
func NewModeChanged(previous, mode string) ModeChanged {
	return ModeChanged{Base: NewBase(KindModeChanged), Previous: previous, Mode: mode}
}

// RecordingFailed reports that the microphone could not be captured.
type RecordingFailed struct {
	Base
	Err error
}

// NewRecordingFailed creates a recording failed event.
func NewRecordingFailed(err error) RecordingFailed {
	return RecordingFailed{Base: NewBase(KindRecordingFailed), Err: err}
}
