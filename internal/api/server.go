package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"prosimgo/pkg/logging"
	"prosimgo/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts the dataref handler, the change stream hub and a shutdownFunc for graceful shutdown.
func NewServer(addr string, drefs *DataRefHandler, hub *Hub, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// Simulator link
	mux.HandleFunc("GET /api/state", drefs.HandleState)
	mux.HandleFunc("GET /api/info", drefs.HandleInfo)

	// Dataref database
	mux.HandleFunc("GET /api/datarefs", drefs.HandleList)
	mux.HandleFunc("POST /api/datarefs/refresh", drefs.HandleRefresh)
	mux.HandleFunc("GET /api/datarefs/{name}", drefs.HandleGet)
	mux.HandleFunc("POST /api/datarefs/{name}/activate", drefs.HandleActivate)
	mux.HandleFunc("POST /api/datarefs/{name}/deactivate", drefs.HandleDeactivate)
	mux.HandleFunc("GET /api/datarefs/{name}/value", drefs.HandleGetValue)
	mux.HandleFunc("PUT /api/datarefs/{name}/value", drefs.HandleSetValue)

	if hub != nil {
		mux.HandleFunc("GET /api/stream", hub.HandleStream)
	}

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Let the response flush first
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      LoggingMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if hub != nil {
		srv.RegisterOnShutdown(hub.Close)
	}
	return srv
}

// Listen opens the server socket. maxConns > 0 caps concurrent connections.
func Listen(addr string, maxConns int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return ln, nil
}

// LoggingMiddleware writes one line per request to the request log.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger := logging.RequestLogger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}
