package models

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// MediaKind distinguishes the two submission workflows.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaAsset is a user-selected file plus a locally derived preview reference.
// Assets are replaced wholesale on re-selection and never mutated in place.
type MediaAsset struct {
	ID          string    `json:"id"`
	Kind        MediaKind `json:"kind"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Path        string    `json:"-"`
	PreviewRef  string    `json:"preview_ref"`
	SelectedAt  time.Time `json:"selected_at"`
}

func NewMediaAsset(kind MediaKind, name, contentType, path string, size int64) *MediaAsset {
	return &MediaAsset{
		ID:          uuid.New().String(),
		Kind:        kind,
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Path:        path,
		PreviewRef:  "file://" + path,
		SelectedAt:  time.Now(),
	}
}

// WithPreview returns a copy of the asset using ref as its preview reference.
func (a *MediaAsset) WithPreview(ref string) *MediaAsset {
	cp := *a
	cp.PreviewRef = ref
	return &cp
}

// Open returns a reader over the asset contents.
func (a *MediaAsset) Open() (io.ReadCloser, error) {
	if a.Path == "" {
		return nil, fmt.Errorf("asset %s has no backing file", a.ID)
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("opening asset: %w", err)
	}
	return f, nil
}
