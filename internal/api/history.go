package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"

	"github.com/alejor21/trabajo-final-IA/internal/models"
	"github.com/alejor21/trabajo-final-IA/internal/session"
)

const historyWriteTimeout = 5 * time.Second

// RecordHistory returns a listener that appends every completed analysis to store.
func RecordHistory(store HistoryStore) session.Listener {
	return func(ev session.Event) {
		if ev.Type != session.EventAnalysisComplete {
			return
		}

		result := ev.Result
		if result == nil && ev.Analysis != nil {
			result = &ev.Analysis.Result
		}
		rec := models.NewAnalysisRecord(ev.Asset, result)

		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := store.Insert(ctx, rec); err != nil {
			log.WithField("asset", rec.AssetName).WithError(err).Error("failed to record analysis")
		}
	}
}

func (app *App) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	kind := models.MediaKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", models.MediaImage, models.MediaVideo:
	default:
		writeError(w, http.StatusBadRequest, "kind must be image or video")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := app.History.ListRecent(r.Context(), kind, limit)
	if err != nil {
		log.WithError(err).Error("failed to list history")
		writeError(w, http.StatusInternalServerError, "Error loading history")
		return
	}
	writeJSON(w, http.StatusOK, records)
}
