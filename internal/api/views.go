package api

import (
	"github.com/alejor21/trabajo-final-IA/internal/models"
	"github.com/alejor21/trabajo-final-IA/internal/session"
)

type imageView struct {
	Phase  models.SessionPhase     `json:"phase"`
	Asset  *models.MediaAsset      `json:"asset,omitempty"`
	Result *models.DetectionResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

func newImageView(st session.ImageState) imageView {
	v := imageView{Phase: st.Phase()}
	switch s := st.(type) {
	case session.ImageIdle:
		v.Asset = s.Asset
	case session.ImageProcessing:
		v.Asset = s.Asset
	case session.ImageReady:
		v.Asset, v.Result = s.Asset, s.Result
	case session.ImageFailed:
		v.Asset, v.Error = s.Asset, s.Message
	}
	return v
}

// videoView keeps the simulated feed (LiveDetections) apart from the backend result (Analysis).
type videoView struct {
	Phase          models.SessionPhase   `json:"phase"`
	Asset          *models.MediaAsset    `json:"asset,omitempty"`
	LiveDetections []string              `json:"live_detections"`
	Tick           *models.LiveTick      `json:"tick,omitempty"`
	Analysis       *models.VideoAnalysis `json:"analysis,omitempty"`
	Error          string                `json:"error,omitempty"`
}

func newVideoView(st session.VideoState) videoView {
	v := videoView{Phase: st.Phase(), LiveDetections: []string{}}
	switch s := st.(type) {
	case session.VideoPreviewReady:
		v.Asset = s.Asset
	case session.VideoLive:
		v.Asset, v.Tick, v.Analysis = s.Asset, s.Tick, s.Analysis
	case session.VideoPaused:
		v.Asset, v.Tick, v.Analysis = s.Asset, s.LastTick, s.Analysis
	case session.VideoAnalyzing:
		v.Asset = s.Asset
	case session.VideoReady:
		v.Asset, v.Analysis = s.Asset, s.Analysis
	case session.VideoFailed:
		v.Asset, v.Error = s.Asset, s.Message
	}
	if v.Tick != nil {
		v.LiveDetections = v.Tick.Labels
	}
	return v
}

type chatView struct {
	Messages    []models.ChatMessage `json:"messages"`
	Typing      bool                 `json:"typing"`
	Suggestions []string             `json:"suggestions"`
}

func newChatView(a *session.AssistantSession) chatView {
	return chatView{
		Messages:    a.Messages(),
		Typing:      a.Typing(),
		Suggestions: a.Suggestions(),
	}
}
