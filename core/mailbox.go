package playback

import (
	"sync"

	"github.com/koscakluka/ema-voice/core/audio"
)

// mailbox is an unbounded queue feeding the engine loop. Posting never
// blocks; signal holds at most one wake-up for any number of posts.
type mailbox struct {
	mu     sync.Mutex
	msgs   []message
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) post(msg message) {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []message {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.msgs
	m.msgs = nil
	return msgs
}

type message interface{ isMessage() }

type beginRecordingMsg struct{}

type captureFailedMsg struct{ err error }

type submitMsg struct {
	responseID string
	recording  Recording
	selection  Selection
}

// chunkMsg carries one received payload of the session identified by token.
type chunkMsg struct {
	token    uint64
	payload  []byte
	mimeType string
}

// ingestEndedMsg signals that no more chunks follow for the session. err is
// set when ingestion stopped on a failure.
type ingestEndedMsg struct {
	token uint64
	err   error
}

type playResultMsg struct {
	token    uint64
	sequence int
	err      error
}

type playbackEventMsg struct{ event audio.PlaybackEvent }

type closeMsg struct{}

func (beginRecordingMsg) isMessage() {}
func (captureFailedMsg) isMessage()  {}
func (submitMsg) isMessage()         {}
func (chunkMsg) isMessage()          {}
func (ingestEndedMsg) isMessage()    {}
func (playResultMsg) isMessage()     {}
func (playbackEventMsg) isMessage()  {}
func (closeMsg) isMessage()          {}
