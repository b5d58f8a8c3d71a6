package playback

import (
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
)

func TestNegativeDurationsMeanImmediate(t *testing.T) {
	e := &Engine{}
	WithReleaseGrace(-time.Second)(e)
	WithErrorHold(-time.Second)(e)

	if e.releaseGrace != 0 {
		t.Fatalf("expected negative grace to clamp to 0, got %s", e.releaseGrace)
	}
	if e.errorHold != 0 {
		t.Fatalf("expected negative hold to clamp to 0, got %s", e.errorHold)
	}
}

func TestWithResourceManagerNilIsNoop(t *testing.T) {
	store := audio.NewStore()
	e := &Engine{resources: store}
	WithResourceManager(nil)(e)

	if e.resources != store {
		t.Fatalf("expected nil resource manager to keep the current one")
	}
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(newFakeDriver(audio.NewStore()))
	defer e.Close()

	if e.releaseGrace != DefaultReleaseGrace {
		t.Fatalf("expected default grace %s, got %s", DefaultReleaseGrace, e.releaseGrace)
	}
	if e.errorHold != DefaultErrorHold {
		t.Fatalf("expected default hold %s, got %s", DefaultErrorHold, e.errorHold)
	}
	if e.Mode() != ModeIdle {
		t.Fatalf("expected a new engine to be idle, got %s", e.Mode())
	}
}
