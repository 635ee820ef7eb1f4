package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"cryptflow/internal/auth"
	"cryptflow/internal/response"
)

type RouterConfig struct {
	APIKey         string
	AllowedOrigins []string
}

// NewRouter wires the public HTTP surface.
func NewRouter(files *FilesAPI, cfg RouterConfig, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Plain("OK").Write(w, http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.APIKeyMiddleware(&auth.Config{APIKey: cfg.APIKey}))
		r.Post("/files", files.HandleUpload)
		r.Get("/files/{key}", files.HandleDownload)
	})

	return r
}
