package audio

import (
	"errors"
	"testing"
)

func TestStoreReleaseTwiceIsNoop(t *testing.T) {
	var liveCounts []int
	store := NewStore(WithLiveHandlesCallback(func(live int) {
		liveCounts = append(liveCounts, live)
	}))

	h, err := store.Acquire([]byte("payload"), "audio/wav")
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}

	store.Release(h)
	store.Release(h)

	acquired, released := store.Stats()
	if acquired != 1 || released != 1 {
		t.Fatalf("expected 1 acquire and 1 release, got %d and %d", acquired, released)
	}
	if len(liveCounts) != 2 || liveCounts[0] != 1 || liveCounts[1] != 0 {
		t.Fatalf("expected live counts [1 0], got %v", liveCounts)
	}
}

func TestStoreAcquireKeepsEarlierHandles(t *testing.T) {
	store := NewStore()

	first, _ := store.Acquire([]byte("first"), "audio/wav")
	second, _ := store.Acquire([]byte("second"), "audio/wav")

	if first == second {
		t.Fatalf("expected fresh handles to differ")
	}
	if store.Live() != 2 {
		t.Fatalf("expected two live handles, got %d", store.Live())
	}

	media, err := store.Open(first)
	if err != nil || string(media.Payload) != "first" {
		t.Fatalf("expected first payload to stay open, got %q (err=%v)", media.Payload, err)
	}
}

func TestStoreOpenAfterReleaseFails(t *testing.T) {
	store := NewStore()
	h, _ := store.Acquire([]byte("payload"), "audio/wav")
	store.Release(h)

	if _, err := store.Open(h); !errors.Is(err, ErrHandleReleased) {
		t.Fatalf("expected released handle error, got %v", err)
	}
}

func TestStoreRejectsEmptyPayload(t *testing.T) {
	store := NewStore()

	if _, err := store.Acquire(nil, "audio/wav"); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected empty payload error, got %v", err)
	}
	if acquired, _ := store.Stats(); acquired != 0 {
		t.Fatalf("expected nothing to be acquired, got %d", acquired)
	}
}
