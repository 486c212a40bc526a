package live

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTicker hands out a channel the test drives by hand.
type manualTicker struct {
	ch       chan time.Time
	released atomic.Bool
	interval time.Duration
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) fn(d time.Duration) (<-chan time.Time, func()) {
	m.interval = d
	return m.ch, func() { m.released.Store(true) }
}

func TestSample(t *testing.T) {
	g := NewGenerator(time.Second, WithRand(rand.New(rand.NewPCG(1, 2))))

	allowed := make(map[string]bool, len(Vocabulary))
	for _, v := range Vocabulary {
		allowed[v] = true
	}

	sizes := make(map[int]bool)
	for i := 0; i < 500; i++ {
		labels := g.Sample()
		require.GreaterOrEqual(t, len(labels), MinLabels)
		require.LessOrEqual(t, len(labels), MaxLabels)
		sizes[len(labels)] = true

		seen := make(map[string]bool)
		for _, l := range labels {
			assert.True(t, allowed[l], "unexpected label %q", l)
			assert.False(t, seen[l], "duplicate label %q", l)
			seen[l] = true
		}
	}
	assert.Len(t, sizes, MaxLabels-MinLabels+1, "every size should eventually occur")
}

func TestStartDeliversTicks(t *testing.T) {
	ticker := newManualTicker()
	g := NewGenerator(1500*time.Millisecond, WithTicker(ticker.fn))

	var mu sync.Mutex
	var got [][]string
	run := g.Start(func(labels []string) {
		mu.Lock()
		got = append(got, labels)
		mu.Unlock()
	})

	assert.Equal(t, 1500*time.Millisecond, ticker.interval)

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()

	run.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, len(got), 1)
	assert.True(t, ticker.released.Load())
}

func TestNoTickAfterStop(t *testing.T) {
	ticker := newManualTicker()
	g := NewGenerator(time.Millisecond, WithTicker(ticker.fn))

	var calls atomic.Int32
	run := g.Start(func([]string) { calls.Add(1) })

	ticker.ch <- time.Now()
	run.Stop()
	before := calls.Load()

	select {
	case ticker.ch <- time.Now():
		t.Fatal("tick loop still receiving after Stop")
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, before, calls.Load())
	assert.True(t, ticker.released.Load())

	select {
	case <-run.Done():
	default:
		t.Fatal("run not done after Stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	g := NewGenerator(time.Hour)
	run := g.Start(func([]string) {})

	run.Stop()
	run.Stop()

	var nilRun *Run
	nilRun.Stop()
}

func TestDefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, NewGenerator(0).Interval())
}
