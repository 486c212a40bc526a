package session

import (
	"github.com/alejor21/trabajo-final-IA/internal/live"
)

// Backend is everything the three controllers need from the transport client.
type Backend interface {
	ImageDetector
	VideoAnalyzer
	ChatSender
}

// Workspace bundles the controllers of one user the way the page composes them.
type Workspace struct {
	Image     *ImageSession
	Video     *VideoSession
	Assistant *AssistantSession
	Tracker   *AnalysisTracker
}

func NewWorkspace(backend Backend, generator *live.Generator) *Workspace {
	tracker := &AnalysisTracker{}

	image := NewImageSession(backend)
	video := NewVideoSession(backend, generator)
	image.Subscribe(tracker.Listen)
	video.Subscribe(tracker.Listen)

	return &Workspace{
		Image:     image,
		Video:     video,
		Assistant: NewAssistantSession(backend, tracker),
		Tracker:   tracker,
	}
}

// Subscribe registers l on every controller.
func (w *Workspace) Subscribe(l Listener) {
	w.Image.Subscribe(l)
	w.Video.Subscribe(l)
	w.Assistant.Subscribe(l)
}

func (w *Workspace) Close() error {
	return w.Video.Close()
}
