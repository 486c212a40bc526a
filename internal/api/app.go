package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/apex/log"

	"github.com/alejor21/trabajo-final-IA/internal/client"
	"github.com/alejor21/trabajo-final-IA/internal/metrics"
	"github.com/alejor21/trabajo-final-IA/internal/models"
	"github.com/alejor21/trabajo-final-IA/internal/session"
	"github.com/alejor21/trabajo-final-IA/internal/storage"
)

// BackendInfo is the part of the transport client the surface uses directly.
type BackendInfo interface {
	Health(ctx context.Context) (*client.HealthStatus, error)
	FetchProcessedImage(ctx context.Context, ref string, w io.Writer) (int64, error)
	FetchProcessedVideo(ctx context.Context, ref string, w io.Writer) (int64, error)
}

// HistoryStore is the optional analysis log.
type HistoryStore interface {
	Insert(ctx context.Context, rec *models.AnalysisRecord) error
	ListRecent(ctx context.Context, kind models.MediaKind, limit int) ([]models.AnalysisRecord, error)
}

type App struct {
	Workspace     *session.Workspace
	Storage       storage.Storage
	Backend       BackendInfo
	History       HistoryStore
	Hub           *Hub
	Metrics       *metrics.Metrics
	MaxUploadSize int64

	uploadsMu sync.Mutex
	uploads   map[models.MediaKind]string
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, err := app.Backend.Health(r.Context())
	if err != nil {
		log.WithError(err).Warn("backend health check failed")
		writeError(w, http.StatusBadGateway, "detection backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// statusFor maps controller errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoAsset),
		errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, client.ErrRequestFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
