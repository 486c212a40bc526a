package models

// SessionPhase is the lifecycle stage of a session controller.
type SessionPhase string

const (
	PhaseIdle              SessionPhase = "idle"
	PhaseAwaitingSelection SessionPhase = "awaiting_selection"
	PhaseProcessing        SessionPhase = "processing"
	PhaseReady             SessionPhase = "ready"
	PhaseFailed            SessionPhase = "failed"

	// Video-only phases.
	PhasePreviewReady SessionPhase = "preview_ready"
	PhaseLivePreview  SessionPhase = "live_preview"
	PhasePaused       SessionPhase = "paused"
	PhaseAnalyzing    SessionPhase = "analyzing"
)

// IsBusy reports whether a backend request is in flight.
func (p SessionPhase) IsBusy() bool {
	return p == PhaseProcessing || p == PhaseAnalyzing
}

// IsTerminal reports whether the phase ends a submission.
func (p SessionPhase) IsTerminal() bool {
	return p == PhaseReady || p == PhaseFailed
}
