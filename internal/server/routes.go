package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /videos", h.CreateVideo)
	mux.HandleFunc("GET /videos", h.ListVideos)
	mux.HandleFunc("POST /videos/info", h.VideoInfo)
	mux.HandleFunc("GET /videos/{id}", h.GetVideo)
	mux.HandleFunc("GET /videos/{id}/content", h.GetVideoContent)
	mux.HandleFunc("DELETE /videos/{id}", h.DeleteVideo)

	mux.HandleFunc("POST /frames", h.Frames)
	mux.HandleFunc("POST /reports", h.CreateReport)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		MetricsMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
