package playback

import "github.com/koscakluka/ema-voice/core/audio"

type SegmentState int

const (
	SegmentPending SegmentState = iota
	SegmentActive
	SegmentCompleted
	SegmentFailed
)

func (s SegmentState) String() string {
	switch s {
	case SegmentPending:
		return "pending"
	case SegmentActive:
		return "active"
	case SegmentCompleted:
		return "completed"
	case SegmentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// segment is one independently playable unit of a response. It owns its
// handle until the handle is released.
type segment struct {
	sequence int
	state    SegmentState
	handle   audio.Handle
	released bool
	started  bool
	err      error
}

func (s *segment) settled() bool {
	return s.state == SegmentCompleted || s.state == SegmentFailed
}
