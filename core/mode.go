package playback

// Mode is the externally observable state of the engine. It drives the record
// button and the status indicator.
type Mode int32

const (
	ModeIdle Mode = iota
	ModeRecording
	ModeAwaitingResponse
	ModeSpeaking
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRecording:
		return "recording"
	case ModeAwaitingResponse:
		return "awaiting_response"
	case ModeSpeaking:
		return "speaking"
	case ModeError:
		return "error"
	default:
		return "unknown"
	}
}

// CanRecord reports whether the record button starts a new recording in this
// mode. Recording over a reply that is still loading or playing supersedes
// it.
func (m Mode) CanRecord() bool {
	return m != ModeRecording
}

// ParseMode is the inverse of [Mode.String].
func ParseMode(name string) (Mode, bool) {
	for m := ModeIdle; m <= ModeError; m++ {
		if m.String() == name {
			return m, true
		}
	}
	return ModeIdle, false
}
