// Package events defines the typed playback event contract.
//
// All kinds live in the playback.* namespace. Semantics used across the
// package:
//
//   - Session: one recording→response exchange, identified by ResponseID.
//   - Segment: one independently playable unit of a response, identified by
//     its Sequence within the session.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Ended/Failed: terminal outcome of a segment or response.
//
// mode events
//
//   - ModeChanged (playback.mode_changed): observable mode changed; drives the
//     record button and the mode indicator.
//   - RecordingFailed (playback.recording_failed): the microphone could not be
//     captured; recording never started.
//
// session events
//
//   - SessionStarted (playback.session_started): a recording was submitted.
//   - SessionSuperseded (playback.session_superseded): an unfinished session
//     was torn down because a new recording started.
//
// segment events
//
//   - SegmentQueued (playback.segment_queued): segment received and pending.
//   - SegmentStarted (playback.segment_started): segment loaded into the sink.
//   - SegmentCompleted (playback.segment_completed): segment played to its end.
//   - SegmentFailed (playback.segment_failed): segment failed or was torn down.
//
// response events
//
//   - ResponseEnded (playback.response_ended): every segment settled and at
//     least one completed.
//   - ResponseFailed (playback.response_failed): the response produced no
//     completed segment, its last segment refused to start, or it was
//     rejected for its transport status or content type.
//
// waveform events
//
//   - WaveformUpdated (playback.waveform_updated): level bars for the playing
//     segment.
//   - WaveformCleared (playback.waveform_cleared): indicator cleared.
package events
