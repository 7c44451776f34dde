// Package server provides the HTTP server for trackcam.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/trackcam/internal/detector"
	"github.com/ayusman/trackcam/internal/hook"
	"github.com/ayusman/trackcam/internal/server/api"
	"github.com/ayusman/trackcam/internal/store"
	"github.com/ayusman/trackcam/internal/stream"
	"github.com/ayusman/trackcam/internal/tracking"
)

// DefaultShutdownTimeout bounds a graceful shutdown when none is configured.
const DefaultShutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	Controller *tracking.Controller
	Detector   detector.Detector

	// Store enables the history endpoints. Optional.
	Store *store.Store

	// OnStreamEnd is called after every finished video feed. Optional.
	OnStreamEnd func(stream.Result)

	// StaticDir is served under /static/ when set.
	StaticDir string

	// Hooks is reported by /api/status when set.
	Hooks *hook.Dispatcher

	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server represents the HTTP server for the trackcam application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time

	video  *VideoHandler
	events *EventsHandler
}

// New creates a new Server with the given configuration.
// Config.Controller is required.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.video = NewVideoHandler(config.Controller, config.Detector, config.OnStreamEnd)
	s.events = NewEventsHandler(config.Controller)
	config.Controller.Subscribe(s.events.Notify)

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	control := api.NewTrackingHandler(s.config.Controller)

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/start/", control.Start)
	s.mux.HandleFunc("/stop", control.Stop)
	s.mux.Handle("/video_feed", s.video)

	s.mux.HandleFunc("/api/health", s.handleHealth)
	var hooks api.HookSource
	if s.config.Hooks != nil {
		hooks = s.config.Hooks
	}
	s.mux.Handle("/api/status", api.NewStatusHandler(s.config.Controller, s.video.Active, hooks))
	s.mux.Handle("/api/events", s.events)

	// Register history endpoints if Store is configured
	if s.config.Store != nil {
		history := api.NewHistoryHandler(s.config.Store)
		s.mux.HandleFunc("/api/sessions", history.Sessions)
		s.mux.HandleFunc("/api/sessions/", history.Sessions)
		s.mux.HandleFunc("/api/mode-events", history.ModeEvents)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/static/", http.StripPrefix("/static/", fs))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Streams returns the number of open video feeds.
func (s *Server) Streams() int {
	return s.video.Active()
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. Open video feeds are cancelled when shutdown begins.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", ln.Addr())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Streaming responses never finish on their own
	cancelRequests()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
