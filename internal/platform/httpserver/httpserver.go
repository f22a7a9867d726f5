package httpserver

import (
	"net/http"
	"time"

	"dunning/internal/platform/config"
)

// New builds an HTTP server with sane defaults for this project.
// WriteTimeout leaves room for the synchronous call poll path.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	readHeader := cfg.ReadHeaderTimeout
	if readHeader == 0 {
		readHeader = 5 * time.Second
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeader,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
