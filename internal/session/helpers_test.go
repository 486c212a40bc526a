package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alejor21/trabajo-final-IA/internal/models"
)

// gate lets a test hold a fake backend call open until it is released.
type gate struct {
	started chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("backend call never started")
	}
}

type imageReply struct {
	result *models.DetectionResult
	err    error
}

type videoReply struct {
	analysis *models.VideoAnalysis
	err      error
}

type chatReply struct {
	text string
	err  error
}

// fakeBackend answers per asset name (or chat text) and optionally blocks on a gate.
type fakeBackend struct {
	mu     sync.Mutex
	images map[string]imageReply
	videos map[string]videoReply
	chats  map[string]chatReply
	gates  map[string]*gate

	imageCalls atomic.Int32
	videoCalls atomic.Int32
	chatCalls  atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		images: make(map[string]imageReply),
		videos: make(map[string]videoReply),
		chats:  make(map[string]chatReply),
		gates:  make(map[string]*gate),
	}
}

func (f *fakeBackend) hold(key string) *gate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := newGate()
	f.gates[key] = g
	return g
}

func (f *fakeBackend) block(key string) {
	f.mu.Lock()
	g := f.gates[key]
	f.mu.Unlock()
	if g == nil {
		return
	}
	close(g.started)
	<-g.release
}

func (f *fakeBackend) SubmitImage(ctx context.Context, asset *models.MediaAsset) (*models.DetectionResult, error) {
	f.imageCalls.Add(1)
	f.block(asset.Name)
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.images[asset.Name]
	return r.result, r.err
}

func (f *fakeBackend) SubmitVideo(ctx context.Context, asset *models.MediaAsset) (*models.VideoAnalysis, error) {
	f.videoCalls.Add(1)
	f.block(asset.Name)
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.videos[asset.Name]
	return r.analysis, r.err
}

func (f *fakeBackend) SendChat(ctx context.Context, text string) (string, error) {
	f.chatCalls.Add(1)
	f.block(text)
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.chats[text]
	return r.text, r.err
}

func newAsset(t *testing.T, kind models.MediaKind, name string) *models.MediaAsset {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0644))
	return models.NewMediaAsset(kind, name, "application/octet-stream", path, 0)
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) phases() []models.SessionPhase {
	var out []models.SessionPhase
	for _, ev := range r.ofType(EventPhase) {
		out = append(out, ev.Phase)
	}
	return out
}

// manualTicker replaces the wall-clock ticker of the live generator.
type manualTicker struct {
	ch       chan time.Time
	acquired atomic.Int32
	released atomic.Int32
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) fn(time.Duration) (<-chan time.Time, func()) {
	m.acquired.Add(1)
	return m.ch, func() { m.released.Add(1) }
}

// tick reports whether a running tick loop accepted the tick.
func (m *manualTicker) tick() bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}
