package playback

import (
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
)

type pendingRelease struct {
	handle audio.Handle
	due    time.Time
}

// releaser defers handle releases by a grace period so a decode that just
// started is not cut off. It is owned by the engine loop; the loop waits on
// C and calls drainDue when it fires.
type releaser struct {
	resources ResourceManager
	grace     time.Duration
	now       func() time.Time

	pending []pendingRelease
	timer   *time.Timer
}

func newReleaser(resources ResourceManager, grace time.Duration) *releaser {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	return &releaser{resources: resources, grace: grace, now: time.Now, timer: timer}
}

// C fires when the earliest pending release is due.
func (r *releaser) C() <-chan time.Time {
	return r.timer.C
}

func (r *releaser) schedule(h audio.Handle) {
	if r.grace <= 0 {
		r.resources.Release(h)
		return
	}

	r.pending = append(r.pending, pendingRelease{handle: h, due: r.now().Add(r.grace)})
	if len(r.pending) == 1 {
		r.timer.Reset(r.grace)
	}
}

// drainDue releases every handle whose grace period is over and rearms the
// timer for the rest.
func (r *releaser) drainDue() int {
	now := r.now()
	released := 0
	for len(r.pending) > 0 && !r.pending[0].due.After(now) {
		r.resources.Release(r.pending[0].handle)
		r.pending = r.pending[1:]
		released++
	}

	if len(r.pending) > 0 {
		r.timer.Reset(r.pending[0].due.Sub(now))
	}
	return released
}

// drainAll releases everything still pending regardless of grace.
func (r *releaser) drainAll() int {
	r.timer.Stop()
	released := len(r.pending)
	for _, p := range r.pending {
		r.resources.Release(p.handle)
	}
	r.pending = nil
	return released
}

func (r *releaser) len() int {
	return len(r.pending)
}
