package client

import (
	"math"

	"github.com/alejor21/trabajo-final-IA/internal/compliance"
	"github.com/alejor21/trabajo-final-IA/internal/models"
)

// DefaultBaseURL is where the perception backend listens during development.
const DefaultBaseURL = "http://localhost:8000"

type detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

type imageResponse struct {
	Detections         []detection         `json:"detections"`
	Compliance         *compliance.Section `json:"compliance"`
	ProcessedImagePath string              `json:"processed_image_path"`
}

// Numeric stats are decoded as float64 so values like 120.0 are accepted.
type videoStats struct {
	TotalFrames      float64                  `json:"total_frames"`
	ProcessedFrames  float64                  `json:"processed_frames"`
	AvgDetections    float64                  `json:"avg_detections"`
	TotalPersons     float64                  `json:"total_persons"`
	CompliantPersons float64                  `json:"compliant_persons"`
	Compliance       *compliance.Section      `json:"compliance"`
	MissingItems     []compliance.MissingItem `json:"missing_items"`
	Detections       []detection              `json:"detections"`
}

type videoResponse struct {
	Stats              *videoStats `json:"stats"`
	ProcessedVideoPath string      `json:"processed_video_path"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// HealthStatus mirrors GET /api/health.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelPath   string `json:"model_path"`
}

func toItems(in []detection) []models.DetectionItem {
	items := make([]models.DetectionItem, 0, len(in))
	for _, d := range in {
		items = append(items, models.DetectionItem{
			Class:      d.Class,
			Confidence: clamp01(d.Confidence),
		})
	}
	return items
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func toCount(v float64) int {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return int(math.Round(v))
}
