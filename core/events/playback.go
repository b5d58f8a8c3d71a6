package events

const (
	// KindSessionStarted identifies the start of a recording→response exchange.
	KindSessionStarted Kind = "playback.session_started"
	// KindSessionSuperseded identifies teardown of an exchange replaced by a newer one.
	KindSessionSuperseded Kind = "playback.session_superseded"
	// KindSegmentQueued identifies a received segment waiting for playback.
	KindSegmentQueued Kind = "playback.segment_queued"
	// KindSegmentStarted identifies a segment dispatched to the sink.
	KindSegmentStarted Kind = "playback.segment_started"
	// KindSegmentCompleted identifies a segment that played to its end.
	KindSegmentCompleted Kind = "playback.segment_completed"
	// KindSegmentFailed identifies a segment that could not be played.
	KindSegmentFailed Kind = "playback.segment_failed"
	// KindResponseEnded identifies a response that played with at least one
	// completed segment.
	KindResponseEnded Kind = "playback.response_ended"
	// KindResponseFailed identifies a response that produced no audible output.
	KindResponseFailed Kind = "playback.response_failed"
)

// SessionStarted marks the start of a playback session.
type SessionStarted struct {
	Base
	ResponseID string
}

// NewSessionStarted creates a session started event.
func NewSessionStarted(responseID string) SessionStarted {
	return SessionStarted{Base: NewBase(KindSessionStarted), ResponseID: responseID}
}

// SessionSuperseded marks the teardown of a session that was replaced before
// it finished. Released counts the segment handles released by the teardown.
type SessionSuperseded struct {
	Base
	ResponseID string
	Released   int
}

// NewSessionSuperseded creates a session superseded event.
func NewSessionSuperseded(responseID string, released int) SessionSuperseded {
	return SessionSuperseded{Base: NewBase(KindSessionSuperseded), ResponseID: responseID, Released: released}
}

// SegmentQueued marks a segment accepted into the playback queue.
type SegmentQueued struct {
	Base
	ResponseID string
	Sequence   int
}

// NewSegmentQueued creates a segment queued event.
func NewSegmentQueued(responseID string, sequence int) SegmentQueued {
	return SegmentQueued{Base: NewBase(KindSegmentQueued), ResponseID: responseID, Sequence: sequence}
}

// SegmentStarted marks a segment becoming the active one.
type SegmentStarted struct {
	Base
	ResponseID string
	Sequence   int
}

// NewSegmentStarted creates a segment started event.
func NewSegmentStarted(responseID string, sequence int) SegmentStarted {
	return SegmentStarted{Base: NewBase(KindSegmentStarted), ResponseID: responseID, Sequence: sequence}
}

// SegmentCompleted marks a segment that played to its natural end.
type SegmentCompleted struct {
	Base
	ResponseID string
	Sequence   int
}

// NewSegmentCompleted creates a segment completed event.
func NewSegmentCompleted(responseID string, sequence int) SegmentCompleted {
	return SegmentCompleted{Base: NewBase(KindSegmentCompleted), ResponseID: responseID, Sequence: sequence}
}

// SegmentFailed marks a segment that failed to start, failed while playing,
// or was torn down by supersession.
type SegmentFailed struct {
	Base
	ResponseID string
	Sequence   int
	Err        error
}

// NewSegmentFailed creates a segment failed event.
func NewSegmentFailed(responseID string, sequence int, err error) SegmentFailed {
	return SegmentFailed{Base: NewBase(KindSegmentFailed), ResponseID: responseID, Sequence: sequence, Err: err}
}

// ResponseEnded marks the end of a response that was at least partially heard.
type ResponseEnded struct {
	Base
	ResponseID string
	Completed  int
	Failed     int
}

// NewResponseEnded creates a response ended event.
func NewResponseEnded(responseID string, completed, failed int) ResponseEnded {
	return ResponseEnded{Base: NewBase(KindResponseEnded), ResponseID: responseID, Completed: completed, Failed: failed}
}

// ResponseFailed marks a response that ended without a single completed
// segment. Err describes the cause.
type ResponseFailed struct {
	Base
	ResponseID string
	Err        error
}

// NewResponseFailed creates a response failed event.
func NewResponseFailed(responseID string, err error) ResponseFailed {
	return ResponseFailed{Base: NewBase(KindResponseFailed), ResponseID: responseID, Err: err}
}
