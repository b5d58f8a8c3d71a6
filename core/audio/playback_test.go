package audio

import (
	"slices"
	"testing"
	"time"
)

func TestCycleTerminatesOncePerLoad(t *testing.T) {
	store := NewStore()
	h, _ := store.Acquire([]byte("a"), "audio/wav")
	other, _ := store.Acquire([]byte("b"), "audio/wav")

	var cycle Cycle
	cycle.Reset(h)

	if cycle.Terminate(other) {
		t.Fatalf("expected terminal event for another source to be rejected")
	}
	if !cycle.Terminate(h) {
		t.Fatalf("expected first terminal event to be accepted")
	}
	if cycle.Terminate(h) {
		t.Fatalf("expected duplicate terminal event to be rejected")
	}

	cycle.Reset(h)
	cycle.Suppress()
	if cycle.Terminate(h) {
		t.Fatalf("expected suppressed cycle not to terminate")
	}
	if _, running := cycle.Current(); running {
		t.Fatalf("expected suppressed cycle not to be running")
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	d := NewDispatcher()
	received := make(chan PlaybackEventKind, 3)
	unsubscribe := d.Subscribe(func(event PlaybackEvent) { received <- event.Kind })

	d.Post(PlaybackEvent{Kind: PlaybackPosition})
	d.Post(PlaybackEvent{Kind: PlaybackPosition})
	d.Post(PlaybackEvent{Kind: PlaybackEnded})

	var kinds []PlaybackEventKind
	for range 3 {
		select {
		case kind := <-received:
			kinds = append(kinds, kind)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %v", kinds)
		}
	}
	if expected := []PlaybackEventKind{PlaybackPosition, PlaybackPosition, PlaybackEnded}; !slices.Equal(kinds, expected) {
		t.Fatalf("expected %v, got %v", expected, kinds)
	}

	unsubscribe()
	d.Post(PlaybackEvent{Kind: PlaybackFailed})
	d.Close()
	select {
	case kind := <-received:
		t.Fatalf("expected no event after unsubscribe, got %s", kind)
	default:
	}
}

func TestLevelOfFullScaleSquareWave(t *testing.T) {
	pcm := []byte{0xFF, 0x7F, 0x01, 0x80}

	if level := Level(pcm); level < 0.99 {
		t.Fatalf("expected full scale level, got %v", level)
	}
	if level := Level(nil); level != 0 {
		t.Fatalf("expected silence for no samples, got %v", level)
	}
}
