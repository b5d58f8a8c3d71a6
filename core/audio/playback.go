package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrPlaybackStart is matched by errors returned when a sink refuses to
	// start playing a loaded source.
	ErrPlaybackStart = errors.New("playback did not start")
	// ErrPlaybackRuntime is matched by errors carried on PlaybackFailed events.
	ErrPlaybackRuntime = errors.New("playback failed")
)

// PlaybackStartError reports that a sink could not start the loaded source.
type PlaybackStartError struct {
	Handle Handle
	Err    error
}

func (e *PlaybackStartError) Error() string {
	return fmt.Sprintf("playback of %s did not start: %v", e.Handle, e.Err)
}

func (e *PlaybackStartError) Unwrap() []error {
	return []error{ErrPlaybackStart, e.Err}
}

type PlaybackEventKind int

const (
	PlaybackPosition PlaybackEventKind = iota
	PlaybackEnded
	PlaybackFailed
)

func (k PlaybackEventKind) String() string {
	switch k {
	case PlaybackPosition:
		return "position"
	case PlaybackEnded:
		return "ended"
	case PlaybackFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PlaybackEvent is emitted by sinks. Handle identifies the source the event
// was produced for, which is not necessarily the source loaded right now.
type PlaybackEvent struct {
	Kind   PlaybackEventKind
	Handle Handle
	Err    error

	Played time.Duration
	Total  time.Duration
	// Level is the RMS level of the audio just played, in [0, 1].
	Level float64
}

func (e PlaybackEvent) Terminal() bool {
	return e.Kind == PlaybackEnded || e.Kind == PlaybackFailed
}

// Listeners fans playback events out to subscribers.
type Listeners struct {
	mu   sync.Mutex
	next int
	subs map[int]func(PlaybackEvent)
}

// Subscribe registers listener and returns a function removing it again.
func (l *Listeners) Subscribe(listener func(PlaybackEvent)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.subs == nil {
		l.subs = map[int]func(PlaybackEvent){}
	}
	id := l.next
	l.next++
	l.subs[id] = listener

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

func (l *Listeners) Emit(event PlaybackEvent) {
	l.mu.Lock()
	subs := make([]func(PlaybackEvent), 0, len(l.subs))
	for _, sub := range l.subs {
		subs = append(subs, sub)
	}
	l.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
}

// Cycle tracks the load/play cycle of a sink and guarantees that at most one
// terminal event is emitted per load. Notifications for any source other
// than the loaded one are rejected.
type Cycle struct {
	mu         sync.Mutex
	handle     Handle
	terminated bool
}

// Reset starts a new cycle for h.
func (c *Cycle) Reset(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = h
	c.terminated = false
}

// Terminate reports whether a terminal event for h may be emitted. It
// returns true at most once per Reset.
func (c *Cycle) Terminate(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h.IsZero() || h != c.handle || c.terminated {
		return false
	}
	c.terminated = true
	return true
}

// Suppress ends the current cycle without a terminal event, e.g. on stop or
// when play refused to start.
func (c *Cycle) Suppress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = true
}

// Current returns the handle of the running cycle and whether it can still
// terminate.
func (c *Cycle) Current() (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle, !c.terminated && !c.handle.IsZero()
}

// Level returns the RMS level of little-endian linear16 samples in [0, 1].
func Level(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := range samples {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / math.MaxInt16
		sum += s * s
	}
	return math.Min(1, math.Sqrt(sum/float64(samples)))
}

// Dispatcher delivers playback events to listeners from its own goroutine,
// in the order they were posted, so sinks can emit from realtime callbacks
// without blocking.
type Dispatcher struct {
	Listeners

	mu     sync.Mutex
	queue  []PlaybackEvent
	signal chan struct{}
	done   chan struct{}
	closed bool
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{signal: make(chan struct{}, 1), done: make(chan struct{})}
	go d.run()
	return d
}

func (d *Dispatcher) Post(event PlaybackEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, event)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// Close delivers what was already posted and stops the dispatcher.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for range d.signal {
		d.mu.Lock()
		queue := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, event := range queue {
			d.Emit(event)
		}
		if closed {
			return
		}
	}
}
