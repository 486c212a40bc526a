package session

import "sync/atomic"

// AnalysisTracker flips once any subscribed controller reports a completed
// analysis. It is the only link between detection and the assistant.
type AnalysisTracker struct {
	done atomic.Bool
}

func (t *AnalysisTracker) Listen(ev Event) {
	if ev.Type == EventAnalysisComplete {
		t.done.Store(true)
	}
}

func (t *AnalysisTracker) AnalysisCompleted() bool {
	return t.done.Load()
}
