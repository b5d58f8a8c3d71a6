package playback

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/transport"
)

const waitTimeout = 2 * time.Second

// fakeDriver plays nothing. It records every call, resolves handles through
// the store it shares with the engine and counts loads issued while a
// previous source was still playing.
type fakeDriver struct {
	store *audio.Store

	mu         sync.Mutex
	ops        []string
	loads      []string
	loaded     audio.Handle
	payload    string
	busy       bool
	violations int

	playErrs    map[string]error
	runtimeErrs map[string]error
	manualEnd   bool

	listeners audio.Listeners
	cycle     audio.Cycle
	loadedCh  chan string
}

func newFakeDriver(store *audio.Store) *fakeDriver {
	return &fakeDriver{
		store:       store,
		playErrs:    map[string]error{},
		runtimeErrs: map[string]error{},
		loadedCh:    make(chan string, 64),
	}
}

func (d *fakeDriver) Load(h audio.Handle) error {
	media, err := d.store.Open(h)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if d.busy {
		d.violations++
	}
	d.loaded = h
	d.payload = string(media.Payload)
	d.loads = append(d.loads, d.payload)
	d.ops = append(d.ops, "load:"+d.payload)
	d.mu.Unlock()

	d.cycle.Reset(h)
	d.loadedCh <- string(media.Payload)
	return nil
}

func (d *fakeDriver) Play(_ context.Context) error {
	d.mu.Lock()
	h, payload := d.loaded, d.payload
	d.ops = append(d.ops, "play:"+payload)
	if err, ok := d.playErrs[payload]; ok {
		d.mu.Unlock()
		d.cycle.Suppress()
		return &audio.PlaybackStartError{Handle: h, Err: err}
	}
	d.busy = true
	runtimeErr := d.runtimeErrs[payload]
	manual := d.manualEnd
	d.mu.Unlock()

	switch {
	case runtimeErr != nil:
		go d.fail(h, runtimeErr)
	case !manual:
		go d.finish(h)
	}
	return nil
}

func (d *fakeDriver) Stop() {
	d.mu.Lock()
	d.busy = false
	d.ops = append(d.ops, "stop")
	d.mu.Unlock()
	d.cycle.Suppress()
}

func (d *fakeDriver) Subscribe(listener func(audio.PlaybackEvent)) func() {
	return d.listeners.Subscribe(listener)
}

// End finishes the source that is loaded right now.
func (d *fakeDriver) End() {
	d.mu.Lock()
	h := d.loaded
	d.mu.Unlock()
	d.finish(h)
}

// Fail reports a runtime failure for the source that is loaded right now.
func (d *fakeDriver) Fail(err error) {
	d.mu.Lock()
	h := d.loaded
	d.mu.Unlock()
	d.fail(h, err)
}

func (d *fakeDriver) Position(h audio.Handle, level float64) {
	d.listeners.Emit(audio.PlaybackEvent{
		Kind:   audio.PlaybackPosition,
		Handle: h,
		Played: 50 * time.Millisecond,
		Total:  100 * time.Millisecond,
		Level:  level,
	})
}

func (d *fakeDriver) finish(h audio.Handle) {
	if !d.cycle.Terminate(h) {
		return
	}
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()
	d.listeners.Emit(audio.PlaybackEvent{Kind: audio.PlaybackEnded, Handle: h})
}

func (d *fakeDriver) fail(h audio.Handle, err error) {
	if !d.cycle.Terminate(h) {
		return
	}
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()
	d.listeners.Emit(audio.PlaybackEvent{Kind: audio.PlaybackFailed, Handle: h, Err: err})
}

func (d *fakeDriver) Loaded() audio.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

func (d *fakeDriver) Loads() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.loads...)
}

func (d *fakeDriver) Ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ops...)
}

func (d *fakeDriver) Violations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.violations
}

func (d *fakeDriver) awaitLoad(t *testing.T, payload string) {
	t.Helper()
	select {
	case got := <-d.loadedCh:
		if got != payload {
			t.Fatalf("expected %q to be loaded, got %q", payload, got)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %q to be loaded", payload)
	}
}

// fakeTransport answers every exchange with the next scripted response.
type fakeTransport struct {
	mu        sync.Mutex
	responses []*transport.Response
	errs      []error
	requests  []transport.Request
}

func (f *fakeTransport) Exchange(_ context.Context, req transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeTransport) Requests() []transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Request(nil), f.requests...)
}

func bufferedResponse(payload string) *transport.Response {
	return &transport.Response{Status: 200, ContentType: "audio/wav", Payload: []byte(payload)}
}

// fakeStream hands out chunks as the test pushes them.
type fakeStream struct {
	chunks chan []byte
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan []byte, 16), errs: make(chan error, 1), closed: make(chan struct{})}
}

func (s *fakeStream) response() *transport.Response {
	return &transport.Response{Status: 200, ContentType: "audio/wav", Chunks: s}
}

func (s *fakeStream) Push(payload string) { s.chunks <- []byte(payload) }

// Finish ends the stream with err, or normally when err is nil.
func (s *fakeStream) Finish(err error) {
	if err == nil {
		err = io.EOF
	}
	s.errs <- err
}

func (s *fakeStream) Next(ctx context.Context) ([]byte, error) {
	select {
	case chunk := <-s.chunks:
		return chunk, nil
	default:
	}

	select {
	case chunk := <-s.chunks:
		return chunk, nil
	case err := <-s.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// eventLog collects everything the engine emits.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
	modes  []string
}

func (l *eventLog) options() []EngineOption {
	return []EngineOption{
		WithEventCallback(func(event events.Event) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.events = append(l.events, event)
			if modeChanged, ok := event.(events.ModeChanged); ok {
				l.modes = append(l.modes, modeChanged.Mode)
			}
		}),
	}
}

func (l *eventLog) Modes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.modes...)
}

func (l *eventLog) Events() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.events...)
}

// await blocks until an event matching match has been emitted and returns the
// first such event.
func (l *eventLog) await(t *testing.T, description string, match func(events.Event) bool) events.Event {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		all := l.Events()
		if i := indexOf(all, match); i >= 0 {
			return all[i]
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", description)
			return nil
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// never fails the test if an event matching match is emitted within window.
func (l *eventLog) never(t *testing.T, description string, window time.Duration, match func(events.Event) bool) {
	t.Helper()
	time.Sleep(window)
	if indexOf(l.Events(), match) >= 0 {
		t.Fatalf("unexpected %s", description)
	}
}

func kindIs(kind events.Kind) func(events.Event) bool {
	return func(event events.Event) bool { return event.Kind() == kind }
}

func modeIs(mode Mode) func(events.Event) bool {
	return func(event events.Event) bool {
		modeChanged, ok := event.(events.ModeChanged)
		return ok && modeChanged.Mode == mode.String()
	}
}

func segmentIs(kind events.Kind, responseID string, sequence int) func(events.Event) bool {
	return func(event events.Event) bool {
		switch typed := event.(type) {
		case events.SegmentQueued:
			return kind == typed.Kind() && typed.ResponseID == responseID && typed.Sequence == sequence
		case events.SegmentStarted:
			return kind == typed.Kind() && typed.ResponseID == responseID && typed.Sequence == sequence
		case events.SegmentCompleted:
			return kind == typed.Kind() && typed.ResponseID == responseID && typed.Sequence == sequence
		case events.SegmentFailed:
			return kind == typed.Kind() && typed.ResponseID == responseID && typed.Sequence == sequence
		}
		return false
	}
}

func responseEnded(responseID string) func(events.Event) bool {
	return func(event events.Event) bool {
		ended, ok := event.(events.ResponseEnded)
		return ok && ended.ResponseID == responseID
	}
}

func responseFailed(responseID string) func(events.Event) bool {
	return func(event events.Event) bool {
		failed, ok := event.(events.ResponseFailed)
		return ok && failed.ResponseID == responseID
	}
}

func indexOf(all []events.Event, match func(events.Event) bool) int {
	for i, event := range all {
		if match(event) {
			return i
		}
	}
	return -1
}

type testEngine struct {
	*Engine
	store     *audio.Store
	driver    *fakeDriver
	transport *fakeTransport
	log       *eventLog
}

func newTestEngine(t *testing.T, opts ...EngineOption) *testEngine {
	t.Helper()

	store := audio.NewStore()
	driver := newFakeDriver(store)
	client := &fakeTransport{}
	log := &eventLog{}

	allOpts := append([]EngineOption{
		WithResourceManager(store),
		WithTransport(client),
		WithReleaseGrace(0),
		WithErrorHold(0),
	}, log.options()...)
	engine := NewEngine(driver, append(allOpts, opts...)...)
	t.Cleanup(func() { _ = engine.Close() })

	return &testEngine{Engine: engine, store: store, driver: driver, transport: client, log: log}
}

func (e *testEngine) submit(t *testing.T, payload string) string {
	t.Helper()
	responseID, err := e.Submit(Recording{Payload: []byte(payload), MIMEType: "audio/wav"}, Selection{SessionID: "s1", ModelID: "m1", VoiceID: "heart"})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	return responseID
}

func (e *testEngine) assertBalanced(t *testing.T) {
	t.Helper()
	acquired, released := e.store.Stats()
	if acquired != released {
		t.Fatalf("expected every acquired handle to be released, acquired %d released %d", acquired, released)
	}
	if live := e.store.Live(); live != 0 {
		t.Fatalf("expected no live handles, got %d", live)
	}
}
