package session

import (
	"sync"
	"time"

	"github.com/alejor21/trabajo-final-IA/internal/models"
)

type EventType string

const (
	EventPhase            EventType = "phase"
	EventAnalysisComplete EventType = "analysis_complete"
	EventLiveTick         EventType = "live_tick"
	EventStaleDropped     EventType = "stale_dropped"
	EventChatMessage      EventType = "chat_message"
)

// Session names carried by events.
const (
	NameImage     = "image"
	NameVideo     = "video"
	NameAssistant = "assistant"
)

// Event notifies external collaborators of a controller change. Only the fields
// relevant to Type are set.
type Event struct {
	Type     EventType               `json:"type"`
	Session  string                  `json:"session"`
	Phase    models.SessionPhase     `json:"phase,omitempty"`
	Asset    *models.MediaAsset      `json:"asset,omitempty"`
	Result   *models.DetectionResult `json:"result,omitempty"`
	Analysis *models.VideoAnalysis   `json:"analysis,omitempty"`
	Tick     *models.LiveTick        `json:"tick,omitempty"`
	Message  *models.ChatMessage     `json:"message,omitempty"`
	At       time.Time               `json:"at"`
}

type Listener func(Event)

// emitter fans events out to listeners in the order their slots were reserved.
// Controllers reserve a slot while holding their own lock and deliver after
// releasing it, so listeners see events in state order and may still read
// controller state.
type emitter struct {
	mu        sync.Mutex
	cond      *sync.Cond
	listeners []Listener
	reserved  uint64
	delivered uint64
}

func (e *emitter) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// reserve hands out the next delivery slot. Every slot must be delivered.
func (e *emitter) reserve() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reserved++
	return e.reserved
}

// deliver waits for every earlier slot to be delivered, then calls listeners.
func (e *emitter) deliver(slot uint64, events ...Event) {
	e.mu.Lock()
	if e.cond == nil {
		e.cond = sync.NewCond(&e.mu)
	}
	for e.delivered+1 != slot {
		e.cond.Wait()
	}
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.delivered = slot
		e.cond.Broadcast()
		e.mu.Unlock()
	}()

	for _, ev := range events {
		if ev.At.IsZero() {
			ev.At = time.Now()
		}
		for _, l := range listeners {
			l(ev)
		}
	}
}
