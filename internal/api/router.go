package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	if app.Metrics != nil {
		r.Handle("/metrics", app.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.HealthHandler)

		r.Post("/image", app.SelectImageHandler)
		r.Get("/image", app.ImageStateHandler)

		r.Route("/video", func(r chi.Router) {
			r.Post("/", app.SelectVideoHandler)
			r.Get("/", app.VideoStateHandler)
			r.Post("/playback", app.TogglePlaybackHandler)
			r.Post("/ended", app.EndOfMediaHandler)
			r.Post("/analyze", app.AnalyzeVideoHandler)
		})

		r.Post("/chat", app.SendChatHandler)
		r.Get("/chat", app.ChatStateHandler)

		r.Get("/history", app.HistoryHandler)
		r.Get("/media/{name}", app.MediaHandler)
		r.Get("/processed/{kind}/{ref}", app.ProcessedHandler)

		if app.Hub != nil {
			r.Get("/events", app.Hub.ServeWS)
		}
	})

	return r
}
