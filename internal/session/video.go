package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/alejor21/trabajo-final-IA/internal/live"
	"github.com/alejor21/trabajo-final-IA/internal/models"
)

// VideoAnalyzer is the slice of the transport client the video workflow needs.
type VideoAnalyzer interface {
	SubmitVideo(ctx context.Context, asset *models.MediaAsset) (*models.VideoAnalysis, error)
}

// VideoState is one of VideoAwaiting, VideoPreviewReady, VideoLive, VideoPaused,
// VideoAnalyzing, VideoReady or VideoFailed.
//
// Analysis is the last authoritative backend result; Tick is the simulated feed.
// They are separate fields and never combined.
type VideoState interface {
	Phase() models.SessionPhase
	isVideoState()
}

type VideoAwaiting struct{}

type VideoPreviewReady struct {
	Asset *models.MediaAsset
}

type VideoLive struct {
	Asset    *models.MediaAsset
	Tick     *models.LiveTick
	Analysis *models.VideoAnalysis
}

type VideoPaused struct {
	Asset    *models.MediaAsset
	LastTick *models.LiveTick
	Analysis *models.VideoAnalysis
}

type VideoAnalyzing struct {
	Asset *models.MediaAsset
}

type VideoReady struct {
	Asset    *models.MediaAsset
	Analysis *models.VideoAnalysis
}

type VideoFailed struct {
	Asset   *models.MediaAsset
	Message string
	Err     error
}

func (VideoAwaiting) Phase() models.SessionPhase     { return models.PhaseAwaitingSelection }
func (VideoPreviewReady) Phase() models.SessionPhase { return models.PhasePreviewReady }
func (VideoLive) Phase() models.SessionPhase         { return models.PhaseLivePreview }
func (VideoPaused) Phase() models.SessionPhase       { return models.PhasePaused }
func (VideoAnalyzing) Phase() models.SessionPhase    { return models.PhaseAnalyzing }
func (VideoReady) Phase() models.SessionPhase        { return models.PhaseReady }
func (VideoFailed) Phase() models.SessionPhase       { return models.PhaseFailed }

func (VideoAwaiting) isVideoState()     {}
func (VideoPreviewReady) isVideoState() {}
func (VideoLive) isVideoState()         {}
func (VideoPaused) isVideoState()       {}
func (VideoAnalyzing) isVideoState()    {}
func (VideoReady) isVideoState()        {}
func (VideoFailed) isVideoState()       {}

// VideoSession drives select → local preview with simulated live detection →
// explicit full analysis. The live ticker is held only while in VideoLive and is
// released on pause, end of media, re-selection, analysis and Close.
type VideoSession struct {
	emitter

	analyzer  VideoAnalyzer
	generator *live.Generator

	mu         sync.Mutex
	state      VideoState
	generation uint64
	run        *live.Run
	runID      uint64
	nextRunID  uint64
	completed  bool
	closed     bool
}

func NewVideoSession(analyzer VideoAnalyzer, generator *live.Generator) *VideoSession {
	if generator == nil {
		generator = live.NewGenerator(live.DefaultInterval)
	}
	return &VideoSession{
		analyzer:  analyzer,
		generator: generator,
		state:     VideoAwaiting{},
	}
}

func (s *VideoSession) State() VideoState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *VideoSession) AnalysisCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// SelectAsset sets a new asset and resets results and live state. It does not submit.
func (s *VideoSession) SelectAsset(asset *models.MediaAsset) error {
	if asset == nil || asset.Path == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	run := s.detachLive()
	s.generation++
	s.state = VideoPreviewReady{Asset: asset}
	slot := s.reserve()
	s.mu.Unlock()

	run.Stop()

	log.WithFields(log.Fields{"asset": asset.ID, "name": asset.Name}).Info("video selected")
	s.deliver(slot, Event{Type: EventPhase, Session: NameVideo, Phase: models.PhasePreviewReady, Asset: asset})
	return nil
}

// TogglePlayback starts local playback with the live feed, or pauses it.
func (s *VideoSession) TogglePlayback() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	var (
		run  *live.Run
		next VideoState
	)
	switch st := s.state.(type) {
	case VideoLive:
		run = s.detachLive()
		next = VideoPaused{Asset: st.Asset, LastTick: st.Tick, Analysis: st.Analysis}
	case VideoPreviewReady:
		next = s.startLive(st.Asset, nil)
	case VideoPaused:
		next = s.startLive(st.Asset, st.Analysis)
	case VideoReady:
		next = s.startLive(st.Asset, st.Analysis)
	case VideoFailed:
		next = s.startLive(st.Asset, nil)
	case VideoAwaiting:
		s.mu.Unlock()
		return ErrNoAsset
	case VideoAnalyzing:
		s.mu.Unlock()
		return ErrBusy
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: toggle playback from %s", ErrInvalidTransition, s.state.Phase())
	}
	s.state = next
	slot := s.reserve()
	s.mu.Unlock()

	run.Stop()

	s.deliver(slot, Event{Type: EventPhase, Session: NameVideo, Phase: next.Phase()})
	return nil
}

// EndOfMedia behaves as a pause that also clears the live-detection set.
func (s *VideoSession) EndOfMedia() error {
	s.mu.Lock()
	st, ok := s.state.(VideoLive)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	run := s.detachLive()
	s.state = VideoPaused{Asset: st.Asset, Analysis: st.Analysis}
	slot := s.reserve()
	s.mu.Unlock()

	run.Stop()

	s.deliver(slot, Event{Type: EventPhase, Session: NameVideo, Phase: models.PhasePaused})
	return nil
}

// AnalyzeFull submits the selected video and blocks until the backend answers.
// A call while another analysis is in flight returns ErrBusy without a request.
func (s *VideoSession) AnalyzeFull(ctx context.Context) error {
	gen, asset, err := s.beginAnalysis()
	if err != nil {
		return err
	}
	return s.finishAnalysis(ctx, gen, asset)
}

// AnalyzeFullAsync enters Analyzing synchronously and completes in the background.
func (s *VideoSession) AnalyzeFullAsync(ctx context.Context) error {
	gen, asset, err := s.beginAnalysis()
	if err != nil {
		return err
	}
	go s.finishAnalysis(ctx, gen, asset)
	return nil
}

// Reset drops the asset and all results, stopping the live feed.
func (s *VideoSession) Reset() {
	s.mu.Lock()
	run := s.detachLive()
	s.generation++
	s.state = VideoAwaiting{}
	slot := s.reserve()
	s.mu.Unlock()

	run.Stop()
	s.deliver(slot, Event{Type: EventPhase, Session: NameVideo, Phase: models.PhaseAwaitingSelection})
}

// Close releases the live ticker. In-flight analyses are discarded when they return.
func (s *VideoSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	run := s.detachLive()
	s.generation++
	s.mu.Unlock()

	run.Stop()
	return nil
}

func (s *VideoSession) beginAnalysis() (uint64, *models.MediaAsset, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, nil, ErrClosed
	}

	var asset *models.MediaAsset
	switch st := s.state.(type) {
	case VideoAwaiting:
		s.mu.Unlock()
		return 0, nil, ErrNoAsset
	case VideoAnalyzing:
		s.mu.Unlock()
		return 0, nil, ErrBusy
	case VideoPreviewReady:
		asset = st.Asset
	case VideoLive:
		asset = st.Asset
	case VideoPaused:
		asset = st.Asset
	case VideoReady:
		asset = st.Asset
	case VideoFailed:
		asset = st.Asset
	}

	run := s.detachLive()
	gen := s.generation
	s.state = VideoAnalyzing{Asset: asset}
	slot := s.reserve()
	s.mu.Unlock()

	run.Stop()

	log.WithField("asset", asset.ID).Info("full video analysis requested")
	s.deliver(slot, Event{Type: EventPhase, Session: NameVideo, Phase: models.PhaseAnalyzing, Asset: asset})
	return gen, asset, nil
}

func (s *VideoSession) finishAnalysis(ctx context.Context, gen uint64, asset *models.MediaAsset) error {
	analysis, err := s.analyzer.SubmitVideo(ctx, asset)

	s.mu.Lock()
	slot := s.reserve()
	if gen != s.generation {
		s.mu.Unlock()
		log.WithField("asset", asset.ID).WithError(ErrStaleResponse).Debug("dropping video response")
		s.deliver(slot, Event{Type: EventStaleDropped, Session: NameVideo, Asset: asset})
		return nil
	}

	if err != nil {
		s.state = VideoFailed{Asset: asset, Message: MessageVideoFailed, Err: err}
		s.mu.Unlock()

		log.WithField("asset", asset.ID).WithError(err).Warn("video analysis failed")
		s.deliver(slot, Event{Type: EventPhase, Session: NameVideo, Phase: models.PhaseFailed, Asset: asset})
		return fmt.Errorf("submitting video: %w", err)
	}

	if analysis == nil {
		analysis = &models.VideoAnalysis{}
	}
	s.state = VideoReady{Asset: asset, Analysis: analysis}
	s.completed = true
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"asset":        asset.ID,
		"total_frames": analysis.Stats.TotalFrames,
		"missing":      len(analysis.Result.Compliance.MissingItems),
	}).Info("video analysis complete")
	s.deliver(slot,
		Event{Type: EventPhase, Session: NameVideo, Phase: models.PhaseReady, Asset: asset, Analysis: analysis},
		Event{Type: EventAnalysisComplete, Session: NameVideo, Asset: asset, Analysis: analysis},
	)
	return nil
}

// startLive acquires the ticker. Callers hold s.mu.
func (s *VideoSession) startLive(asset *models.MediaAsset, analysis *models.VideoAnalysis) VideoState {
	s.nextRunID++
	s.runID = s.nextRunID
	s.run = s.generator.Start(s.onTick(s.runID))
	return VideoLive{Asset: asset, Analysis: analysis}
}

// detachLive invalidates the active run and hands it back so the caller can Stop
// it after releasing s.mu. Callers hold s.mu.
func (s *VideoSession) detachLive() *live.Run {
	run := s.run
	s.run = nil
	s.runID = 0
	return run
}

func (s *VideoSession) onTick(runID uint64) func([]string) {
	return func(labels []string) {
		s.mu.Lock()
		st, ok := s.state.(VideoLive)
		if !ok || s.runID != runID {
			s.mu.Unlock()
			return
		}
		seq := 1
		if st.Tick != nil {
			seq = st.Tick.Seq + 1
		}
		tick := &models.LiveTick{Seq: seq, Labels: labels, At: time.Now()}
		st.Tick = tick
		s.state = st
		slot := s.reserve()
		s.mu.Unlock()

		s.deliver(slot, Event{Type: EventLiveTick, Session: NameVideo, Phase: models.PhaseLivePreview, Tick: tick})
	}
}
