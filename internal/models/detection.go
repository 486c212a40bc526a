package models

import "strings"

// DetectionItem is a single labelled detection returned by the backend.
type DetectionItem struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Percent returns the confidence scaled to 0-100.
func (d DetectionItem) Percent() float64 {
	return d.Confidence * 100
}

// MissingEntry lists the equipment not detected for one person.
type MissingEntry struct {
	PersonID int      `json:"person_id"`
	Missing  []string `json:"missing"`
}

// ComplianceSummary is derived from the backend payload, never authored by the user.
// Reported is false when the backend sent no verdict; Compliant is then false.
type ComplianceSummary struct {
	Reported     bool           `json:"reported"`
	Compliant    bool           `json:"compliant"`
	Message      string         `json:"message"`
	MissingItems []MissingEntry `json:"missing_items"`
}

// MissingFor returns the entry for personID, if any.
func (c ComplianceSummary) MissingFor(personID int) (MissingEntry, bool) {
	for _, e := range c.MissingItems {
		if e.PersonID == personID {
			return e, true
		}
	}
	return MissingEntry{}, false
}

// DetectionResult is created once per completed backend call and replaced wholesale by the next one.
type DetectionResult struct {
	Items             []DetectionItem   `json:"detections"`
	Compliance        ComplianceSummary `json:"compliance"`
	ProcessedMediaRef string            `json:"processed_media_ref,omitempty"`
	ProcessedMediaURL string            `json:"processed_media_url,omitempty"`
}

// HasProcessedMedia reports whether the backend returned an annotated copy.
func (r *DetectionResult) HasProcessedMedia() bool {
	return r != nil && r.ProcessedMediaRef != ""
}

// VideoStats carries the per-video statistics of a full analysis.
type VideoStats struct {
	TotalFrames      int     `json:"total_frames"`
	ProcessedFrames  int     `json:"processed_frames"`
	AvgDetections    float64 `json:"avg_detections"`
	TotalPersons     int     `json:"total_persons"`
	CompliantPersons int     `json:"compliant_persons"`
}

// VideoAnalysis is the authoritative outcome of a full-video submission.
type VideoAnalysis struct {
	Stats  VideoStats      `json:"stats"`
	Result DetectionResult `json:"result"`
}

// Equipment categories recognised by Category.
const (
	CategoryHelmet  = "helmet"
	CategoryVest    = "vest"
	CategoryGloves  = "gloves"
	CategoryBoots   = "boots"
	CategoryGoggles = "goggles"
	CategoryOther   = "other"
)

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryHelmet, []string{"helmet", "casco"}},
	{CategoryVest, []string{"vest", "chaleco"}},
	{CategoryGloves, []string{"gloves", "guantes"}},
	{CategoryBoots, []string{"boots", "botas"}},
	{CategoryGoggles, []string{"goggles", "gafas"}},
}

// Category maps an English or Spanish detection label to an equipment category.
func Category(label string) string {
	lower := strings.ToLower(label)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.category
			}
		}
	}
	return CategoryOther
}
