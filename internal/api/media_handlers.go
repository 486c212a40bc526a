package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"

	"github.com/alejor21/trabajo-final-IA/internal/storage"
)

// MediaHandler serves stored uploads and processed copies with Range support.
func (app *App) MediaHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	file, err := app.Storage.OpenFile(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	stat, ok := file.(interface{ Stat() (os.FileInfo, error) })
	if !ok {
		http.ServeContent(w, r, name, time.Time{}, file)
		return
	}
	info, err := stat.Stat()
	if err != nil {
		http.Error(w, "Error accessing media file", http.StatusInternalServerError)
		return
	}

	// ServeContent answers Range requests with 206 Partial Content.
	http.ServeContent(w, r, name, info.ModTime(), file)
}

// ProcessedHandler streams an annotated copy from the backend, optionally
// keeping it in storage under the same reference.
func (app *App) ProcessedHandler(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	ref := chi.URLParam(r, "ref")

	var fetch func(ctx context.Context, ref string, w io.Writer) (int64, error)
	switch kind {
	case "image":
		fetch = app.Backend.FetchProcessedImage
	case "video":
		fetch = app.Backend.FetchProcessedVideo
	default:
		http.NotFound(w, r)
		return
	}

	var (
		dst  io.Writer = w
		save storage.PendingFile
	)
	if r.URL.Query().Get("save") == "1" {
		pending, err := app.Storage.CreateFile(ref)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidPath) {
				writeError(w, http.StatusBadRequest, "invalid reference")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to store processed media")
			return
		}
		defer pending.Discard()
		dst = io.MultiWriter(w, pending)
		save = pending
	}

	if ct := mime.TypeByExtension(filepath.Ext(ref)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}

	n, err := fetch(r.Context(), ref, dst)
	if err != nil {
		log.WithFields(log.Fields{"kind": kind, "ref": ref, "bytes": n}).WithError(err).Warn("processed media fetch failed")
		if n == 0 {
			w.Header().Del("Content-Type")
			writeError(w, http.StatusBadGateway, "Failed to fetch processed media")
		}
		return
	}

	if save != nil {
		if err := save.Commit(); err != nil {
			log.WithField("ref", ref).WithError(err).Warn("failed to store processed media")
		}
	}
}
