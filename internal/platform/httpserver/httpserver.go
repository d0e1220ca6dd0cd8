// Package httpserver wraps http.Server construction with sane timeouts.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an http.Server with timeouts suitable for a small JSON API.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
