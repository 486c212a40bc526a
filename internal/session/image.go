package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/apex/log"

	"github.com/alejor21/trabajo-final-IA/internal/models"
)

// ImageDetector is the slice of the transport client the image workflow needs.
type ImageDetector interface {
	SubmitImage(ctx context.Context, asset *models.MediaAsset) (*models.DetectionResult, error)
}

// ImageState is one of ImageAwaiting, ImageIdle, ImageProcessing, ImageReady or ImageFailed.
type ImageState interface {
	Phase() models.SessionPhase
	isImageState()
}

type ImageAwaiting struct{}

type ImageIdle struct {
	Asset *models.MediaAsset
}

type ImageProcessing struct {
	Asset *models.MediaAsset
}

type ImageReady struct {
	Asset  *models.MediaAsset
	Result *models.DetectionResult
}

// ImageFailed keeps the asset so its preview stays visible.
type ImageFailed struct {
	Asset   *models.MediaAsset
	Message string
	Err     error
}

func (ImageAwaiting) Phase() models.SessionPhase   { return models.PhaseAwaitingSelection }
func (ImageIdle) Phase() models.SessionPhase       { return models.PhaseIdle }
func (ImageProcessing) Phase() models.SessionPhase { return models.PhaseProcessing }
func (ImageReady) Phase() models.SessionPhase      { return models.PhaseReady }
func (ImageFailed) Phase() models.SessionPhase     { return models.PhaseFailed }

func (ImageAwaiting) isImageState()   {}
func (ImageIdle) isImageState()       {}
func (ImageProcessing) isImageState() {}
func (ImageReady) isImageState()      {}
func (ImageFailed) isImageState()     {}

// ImageSession drives select → auto-submit → result for single images.
//
// Every submission is tagged with the selection generation active when it was
// sent; a response whose tag no longer matches is dropped, so the last selected
// asset wins regardless of response arrival order.
type ImageSession struct {
	emitter

	detector ImageDetector

	mu         sync.Mutex
	state      ImageState
	generation uint64
	completed  bool
}

func NewImageSession(detector ImageDetector) *ImageSession {
	return &ImageSession{
		detector: detector,
		state:    ImageAwaiting{},
	}
}

func (s *ImageSession) State() ImageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AnalysisCompleted reports whether any submission has reached Ready.
func (s *ImageSession) AnalysisCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// SelectAsset replaces the asset, clears any previous result and submits it,
// blocking until the backend answers. Failures are recorded in the Failed state
// and also returned; a superseded submission returns nil.
func (s *ImageSession) SelectAsset(ctx context.Context, asset *models.MediaAsset) error {
	gen, err := s.begin(asset)
	if err != nil {
		return err
	}
	return s.finish(ctx, gen, asset)
}

// SelectAssetAsync enters Processing synchronously and completes the submission
// in the background.
func (s *ImageSession) SelectAssetAsync(ctx context.Context, asset *models.MediaAsset) error {
	gen, err := s.begin(asset)
	if err != nil {
		return err
	}
	go s.finish(ctx, gen, asset)
	return nil
}

// Reset drops the asset and any result; in-flight responses become stale.
func (s *ImageSession) Reset() {
	s.mu.Lock()
	s.generation++
	s.state = ImageAwaiting{}
	slot := s.reserve()
	s.mu.Unlock()

	s.deliver(slot, Event{Type: EventPhase, Session: NameImage, Phase: models.PhaseAwaitingSelection})
}

func (s *ImageSession) begin(asset *models.MediaAsset) (uint64, error) {
	if asset == nil || asset.Path == "" {
		return 0, ErrEmptyInput
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state = ImageProcessing{Asset: asset}
	slot := s.reserve()
	s.mu.Unlock()

	log.WithFields(log.Fields{"asset": asset.ID, "name": asset.Name}).Info("image selected, submitting")
	s.deliver(slot,
		Event{Type: EventPhase, Session: NameImage, Phase: models.PhaseIdle, Asset: asset},
		Event{Type: EventPhase, Session: NameImage, Phase: models.PhaseProcessing, Asset: asset},
	)
	return gen, nil
}

func (s *ImageSession) finish(ctx context.Context, gen uint64, asset *models.MediaAsset) error {
	result, err := s.detector.SubmitImage(ctx, asset)

	s.mu.Lock()
	slot := s.reserve()
	if gen != s.generation {
		s.mu.Unlock()
		log.WithField("asset", asset.ID).WithError(ErrStaleResponse).Debug("dropping image response")
		s.deliver(slot, Event{Type: EventStaleDropped, Session: NameImage, Asset: asset})
		return nil
	}

	if err != nil {
		s.state = ImageFailed{Asset: asset, Message: MessageImageFailed, Err: err}
		s.mu.Unlock()

		log.WithField("asset", asset.ID).WithError(err).Warn("image detection failed")
		s.deliver(slot, Event{Type: EventPhase, Session: NameImage, Phase: models.PhaseFailed, Asset: asset})
		return fmt.Errorf("submitting image: %w", err)
	}

	if result == nil {
		result = &models.DetectionResult{}
	}
	s.state = ImageReady{Asset: asset, Result: result}
	s.completed = true
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"asset":      asset.ID,
		"detections": len(result.Items),
		"compliant":  result.Compliance.Compliant,
	}).Info("image analysis complete")
	s.deliver(slot,
		Event{Type: EventPhase, Session: NameImage, Phase: models.PhaseReady, Asset: asset, Result: result},
		Event{Type: EventAnalysisComplete, Session: NameImage, Asset: asset, Result: result},
	)
	return nil
}
