package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
)

type countingResources struct {
	mu       sync.Mutex
	released []audio.Handle
}

func (c *countingResources) Acquire([]byte, string) (audio.Handle, error) {
	return audio.Handle{}, nil
}

func (c *countingResources) Release(h audio.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = append(c.released, h)
}

func (c *countingResources) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.released)
}

func acquireHandles(t *testing.T, n int) []audio.Handle {
	t.Helper()
	store := audio.NewStore()
	handles := make([]audio.Handle, n)
	for i := range handles {
		h, err := store.Acquire([]byte{byte(i + 1)}, "audio/wav")
		if err != nil {
			t.Fatalf("unexpected acquire error: %v", err)
		}
		handles[i] = h
	}
	return handles
}

func TestReleaserWithoutGraceReleasesImmediately(t *testing.T) {
	resources := &countingResources{}
	r := newReleaser(resources, 0)

	r.schedule(acquireHandles(t, 1)[0])

	if resources.count() != 1 || r.len() != 0 {
		t.Fatalf("expected immediate release, released %d pending %d", resources.count(), r.len())
	}
}

func TestReleaserDrainsOnlyDueHandles(t *testing.T) {
	resources := &countingResources{}
	r := newReleaser(resources, time.Second)
	now := time.Unix(0, 0)
	r.now = func() time.Time { return now }

	handles := acquireHandles(t, 2)
	r.schedule(handles[0])
	now = now.Add(500 * time.Millisecond)
	r.schedule(handles[1])

	now = now.Add(600 * time.Millisecond)
	if released := r.drainDue(); released != 1 {
		t.Fatalf("expected one due release, got %d", released)
	}
	if resources.released[0] != handles[0] {
		t.Fatalf("expected the oldest handle to be released first")
	}
	if r.len() != 1 {
		t.Fatalf("expected one pending release, got %d", r.len())
	}

	if released := r.drainAll(); released != 1 {
		t.Fatalf("expected drain all to release the rest, got %d", released)
	}
	if resources.count() != 2 || r.len() != 0 {
		t.Fatalf("expected everything released, released %d pending %d", resources.count(), r.len())
	}
}

func TestReleaserTimerFiresAfterGrace(t *testing.T) {
	resources := &countingResources{}
	r := newReleaser(resources, 10*time.Millisecond)

	r.schedule(acquireHandles(t, 1)[0])

	select {
	case <-r.C():
		r.drainDue()
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for release timer")
	}
	if resources.count() != 1 {
		t.Fatalf("expected handle to be released after the grace, got %d releases", resources.count())
	}
}
