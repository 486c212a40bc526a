package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/apex/log"

	"github.com/alejor21/trabajo-final-IA/internal/models"
	"github.com/alejor21/trabajo-final-IA/internal/storage"
)

var allowedExtensions = map[models.MediaKind]map[string]string{
	models.MediaImage: {
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".bmp":  "image/bmp",
		".webp": "image/webp",
	},
	models.MediaVideo: {
		".mp4":  "video/mp4",
		".avi":  "video/x-msvideo",
		".mov":  "video/quicktime",
		".mkv":  "video/x-matroska",
		".webm": "video/webm",
	},
}

// receiveUpload stores the multipart "file" field and returns it as an asset
// together with its stored name. It writes the error response itself and
// returns nil on failure.
func (app *App) receiveUpload(w http.ResponseWriter, r *http.Request, kind models.MediaKind) (*models.MediaAsset, string) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return nil, ""
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, ""
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return nil, ""
	}
	defer file.Close()

	contentType, ok := acceptContentType(kind, header.Header.Get("Content-Type"), header.Filename)
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("Only %s files are allowed", kind))
		return nil, ""
	}

	name, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		log.WithError(err).Error("failed to store upload")
		writeError(w, http.StatusInternalServerError, "Failed to save file")
		return nil, ""
	}

	path, err := app.Storage.GetFilePath(name)
	if err != nil {
		app.Storage.DeleteFile(name)
		writeError(w, http.StatusInternalServerError, "Failed to save file")
		return nil, ""
	}

	log.WithFields(log.Fields{"kind": kind, "name": header.Filename, "stored": name, "size": header.Size}).Info("upload stored")
	asset := models.NewMediaAsset(kind, header.Filename, contentType, path, header.Size).
		WithPreview("/api/media/" + name)
	return asset, name
}

// selectUpload runs sel for the stored upload name. On success name replaces
// the previous upload of the same kind, which is removed; on failure name
// itself is removed.
func (app *App) selectUpload(kind models.MediaKind, name string, sel func() error) error {
	app.uploadsMu.Lock()
	defer app.uploadsMu.Unlock()

	if err := sel(); err != nil {
		app.dropUpload(name)
		return err
	}

	if app.uploads == nil {
		app.uploads = make(map[models.MediaKind]string)
	}
	prev := app.uploads[kind]
	app.uploads[kind] = name
	if prev != "" && prev != name {
		app.dropUpload(prev)
	}
	return nil
}

func (app *App) dropUpload(name string) {
	if err := app.Storage.DeleteFile(name); err != nil {
		log.WithField("stored", name).WithError(err).Warn("failed to remove upload")
	}
}

// acceptContentType trusts a matching declared type and falls back to the extension.
func acceptContentType(kind models.MediaKind, contentType, filename string) (string, bool) {
	if strings.HasPrefix(contentType, string(kind)+"/") {
		return contentType, true
	}
	ct, ok := allowedExtensions[kind][strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}
