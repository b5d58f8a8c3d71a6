package audio

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrHandleReleased = errors.New("audio handle released")
	ErrEmptyPayload   = errors.New("empty audio payload")
)

// Handle references a payload registered in a [Store]. Handles are
// comparable; the zero Handle never refers to a payload.
type Handle struct {
	id uuid.UUID
}

func (h Handle) IsZero() bool {
	return h.id == uuid.Nil
}

func (h Handle) String() string {
	if h.IsZero() {
		return "none"
	}
	return h.id.String()
}

// Media is the playable source a live handle resolves to.
type Media struct {
	Payload  []byte
	MIMEType string
}

// MediaOpener resolves handles to their media. Sinks use it on load.
type MediaOpener interface {
	Open(Handle) (Media, error)
}

// Store keeps memory-backed media alive between Acquire and Release. It is
// the only owner of the payload bytes; a handle that was released can no
// longer be opened.
//
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	live     map[Handle]Media
	acquired int
	released int

	onLiveChanged func(live int)
}

type StoreOption func(*Store)

// WithLiveHandlesCallback registers a callback invoked with the number of live
// handles every time a handle is acquired or released.
func WithLiveHandlesCallback(callback func(live int)) StoreOption {
	return func(s *Store) {
		s.onLiveChanged = callback
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{live: map[Handle]Media{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire registers payload and returns a fresh handle for it. Acquiring
// never invalidates earlier handles; callers release those themselves.
func (s *Store) Acquire(payload []byte, mimeType string) (Handle, error) {
	if len(payload) == 0 {
		return Handle{}, ErrEmptyPayload
	}

	h := Handle{id: uuid.New()}
	s.mu.Lock()
	s.live[h] = Media{Payload: payload, MIMEType: mimeType}
	s.acquired++
	live := len(s.live)
	s.mu.Unlock()

	s.notify(live)
	return h, nil
}

// Release frees the media behind h. Releasing an unknown or already released
// handle is a no-op.
func (s *Store) Release(h Handle) {
	s.mu.Lock()
	if _, ok := s.live[h]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.live, h)
	s.released++
	live := len(s.live)
	s.mu.Unlock()

	s.notify(live)
}

func (s *Store) Open(h Handle) (Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	media, ok := s.live[h]
	if !ok {
		return Media{}, ErrHandleReleased
	}
	return media, nil
}

// Live returns the number of handles acquired and not yet released.
func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Stats returns the total number of acquisitions and effective releases.
func (s *Store) Stats() (acquired, released int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired, s.released
}

func (s *Store) notify(live int) {
	if s.onLiveChanged != nil {
		s.onLiveChanged(live)
	}
}
