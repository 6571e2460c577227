package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for this project.
// WriteTimeout leaves room for a full phase run inside a trigger request.
func New(addr string, handler http.Handler, phaseTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      phaseTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
