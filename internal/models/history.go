package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRecord is one row of the optional analysis history log.
type AnalysisRecord struct {
	ID             string    `json:"id"`
	Kind           MediaKind `json:"kind"`
	AssetName      string    `json:"asset_name"`
	Reported       bool      `json:"reported"`
	Compliant      bool      `json:"compliant"`
	MissingPersons int       `json:"missing_persons"`
	Detections     int       `json:"detections"`
	ProcessedRef   string    `json:"processed_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewAnalysisRecord(asset *MediaAsset, result *DetectionResult) *AnalysisRecord {
	rec := &AnalysisRecord{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
	if asset != nil {
		rec.Kind = asset.Kind
		rec.AssetName = asset.Name
	}
	if result != nil {
		rec.Reported = result.Compliance.Reported
		rec.Compliant = result.Compliance.Compliant
		rec.MissingPersons = len(result.Compliance.MissingItems)
		rec.Detections = len(result.Items)
		rec.ProcessedRef = result.ProcessedMediaRef
	}
	return rec
}
