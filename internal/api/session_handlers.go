package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/apex/log"

	"github.com/alejor21/trabajo-final-IA/internal/models"
)

// Submissions outlive the request that started them.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (app *App) SelectImageHandler(w http.ResponseWriter, r *http.Request) {
	asset, name := app.receiveUpload(w, r, models.MediaImage)
	if asset == nil {
		return
	}

	err := app.selectUpload(models.MediaImage, name, func() error {
		return app.Workspace.Image.SelectAssetAsync(detached(r), asset)
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, newImageView(app.Workspace.Image.State()))
}

func (app *App) ImageStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newImageView(app.Workspace.Image.State()))
}

func (app *App) SelectVideoHandler(w http.ResponseWriter, r *http.Request) {
	asset, name := app.receiveUpload(w, r, models.MediaVideo)
	if asset == nil {
		return
	}

	err := app.selectUpload(models.MediaVideo, name, func() error {
		return app.Workspace.Video.SelectAsset(asset)
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newVideoView(app.Workspace.Video.State()))
}

func (app *App) VideoStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newVideoView(app.Workspace.Video.State()))
}

func (app *App) TogglePlaybackHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Workspace.Video.TogglePlayback(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newVideoView(app.Workspace.Video.State()))
}

func (app *App) EndOfMediaHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Workspace.Video.EndOfMedia(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newVideoView(app.Workspace.Video.State()))
}

func (app *App) AnalyzeVideoHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Workspace.Video.AnalyzeFullAsync(detached(r)); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, newVideoView(app.Workspace.Video.State()))
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply models.ChatMessage `json:"reply"`
	chatView
}

func (app *App) SendChatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := app.Workspace.Assistant.Send(r.Context(), req.Message)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	log.WithField("reply", reply.ID).Debug("chat reply sent")
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, chatView: newChatView(app.Workspace.Assistant)})
}

func (app *App) ChatStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newChatView(app.Workspace.Assistant))
}
