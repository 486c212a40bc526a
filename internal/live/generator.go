// Package live simulates a real-time detection feed during local video playback.
//
// The labels it produces are random samples of a fixed vocabulary. They are not
// detections and must never be mixed into a backend result.
package live

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	DefaultInterval = 1500 * time.Millisecond

	MinLabels = 2
	MaxLabels = 4
)

// Vocabulary is the fixed set of equipment labels the simulation samples from.
var Vocabulary = []string{
	"Casco de Seguridad",
	"Chaleco Reflectivo",
	"Guantes de Protección",
	"Gafas de Seguridad",
	"Botas de Seguridad",
}

// TickerFunc acquires a periodic tick source and returns the channel plus its release func.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func systemTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Generator struct {
	interval  time.Duration
	newTicker TickerFunc

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Generator)

func WithTicker(fn TickerFunc) Option {
	return func(g *Generator) {
		g.newTicker = fn
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		g.rng = rng
	}
}

func NewGenerator(interval time.Duration, opts ...Option) *Generator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	g := &Generator{
		interval:  interval,
		newTicker: systemTicker,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Interval() time.Duration {
	return g.interval
}

// Sample returns between MinLabels and MaxLabels distinct labels from Vocabulary.
func (g *Generator) Sample() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := MinLabels + g.rng.IntN(MaxLabels-MinLabels+1)
	perm := g.rng.Perm(len(Vocabulary))

	labels := make([]string, 0, n)
	for _, i := range perm[:n] {
		labels = append(labels, Vocabulary[i])
	}
	return labels
}

// Start acquires the ticker and calls onTick with a fresh sample on every tick
// until the returned Run is stopped.
func (g *Generator) Start(onTick func(labels []string)) *Run {
	ticks, release := g.newTicker(g.interval)
	ctx, cancel := context.WithCancel(context.Background())

	r := &Run{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		defer release()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				if ctx.Err() != nil {
					return
				}
				onTick(g.Sample())
			}
		}
	}()

	return r
}

// Run is one acquisition of the live ticker.
type Run struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop releases the ticker and waits for the tick loop to exit; no onTick call
// begins after Stop returns. Safe to call more than once and on a nil Run.
func (r *Run) Stop() {
	if r == nil {
		return
	}
	r.once.Do(r.cancel)
	<-r.done
}

// Done is closed once the tick loop has exited.
func (r *Run) Done() <-chan struct{} {
	return r.done
}
