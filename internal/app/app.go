// Package app wires the trackcam components together.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ayusman/trackcam/internal/capture"
	"github.com/ayusman/trackcam/internal/config"
	"github.com/ayusman/trackcam/internal/detector"
	"github.com/ayusman/trackcam/internal/hook"
	"github.com/ayusman/trackcam/internal/server"
	"github.com/ayusman/trackcam/internal/store"
	"github.com/ayusman/trackcam/internal/stream"
	"github.com/ayusman/trackcam/internal/tracking"
)

// Config holds configuration options for the application. Camera, Detector
// and Store are built from Settings when left nil.
type Config struct {
	Settings *config.Config
	Camera   capture.Camera
	Detector detector.Detector
	Store    *store.Store
}

// App owns the tracking controller, the detector, the history store, the
// event hooks and the HTTP server.
type App struct {
	settings   *config.Config
	controller *tracking.Controller
	detector   detector.Detector
	store      *store.Store
	ownsStore  bool
	hooks      *hook.Dispatcher
	server     *server.Server
}

// New creates a new App. Nothing touches the camera until the first video
// feed is requested.
func New(cfg Config) (*App, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	a := &App{
		settings: settings,
		detector: cfg.Detector,
		store:    cfg.Store,
	}

	camera := cfg.Camera
	if camera == nil {
		camera = capture.NewCamera(settings.Camera.Source, settings.CameraSettings())
	}
	a.controller = tracking.NewController(camera)

	// Try the Haar cascade, fall back to a detector that finds nothing
	if a.detector == nil {
		if cd, err := detector.NewCascadeDetector(settings.Detector.Cascade); err == nil {
			a.detector = cd
			log.Printf("Using face cascade %s", cd.Path())
		} else {
			log.Printf("Face cascade not available (%v), face tracking will not annotate", err)
			a.detector = detector.NewMockDetector()
		}
	}

	if a.store == nil && settings.Store.Enabled {
		s, err := store.New(settings.Store.Path)
		if err != nil {
			a.detector.Close()
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		a.store = s
		a.ownsStore = true
		log.Printf("Recording history in %s", settings.Store.Path)
	}

	if a.store != nil && settings.Store.MaxSessions > 0 {
		if n, err := a.store.Sessions().Prune(settings.Store.MaxSessions); err != nil {
			log.Printf("Failed to prune session history: %v", err)
		} else if n > 0 {
			log.Printf("Pruned %d old sessions", n)
		}
	}

	if dir := settings.Hooks.Dir; dir != "" {
		manager := hook.NewManager(dir)
		if err := manager.Discover(); err != nil {
			log.Printf("Failed to load hooks from %s: %v", dir, err)
		} else if n := len(manager.List()); n > 0 {
			a.hooks = hook.NewDispatcher(manager, hook.NewExecutor(settings.Hooks.Timeout), hook.DefaultQueueSize)
			log.Printf("Loaded %d hooks from %s", n, dir)
		}
	}

	a.controller.Subscribe(a.modeChanged)

	a.server = server.New(server.Config{
		Controller:      a.controller,
		Detector:        a.detector,
		Store:           a.store,
		OnStreamEnd:     a.streamEnded,
		StaticDir:       settings.Server.StaticDir,
		Hooks:           a.hooks,
		ReadTimeout:     settings.Server.ReadTimeout,
		ShutdownTimeout: settings.Server.ShutdownTimeout,
	})

	return a, nil
}

// Run serves HTTP on the configured address until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.server.ListenAndServe(ctx, a.settings.ServerAddress())
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.server
}

// Controller returns the tracking controller.
func (a *App) Controller() *tracking.Controller {
	return a.controller
}

// Store returns the history store, or nil when history is disabled.
func (a *App) Store() *store.Store {
	return a.store
}

// Hooks returns the hook dispatcher, or nil when no hooks were found.
func (a *App) Hooks() *hook.Dispatcher {
	return a.hooks
}

// Detector returns the face detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// URL returns the address of the control panel.
func (a *App) URL() string {
	host := a.settings.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d/", host, a.settings.Server.Port)
}

// Close stops tracking and releases the camera, the detector and the store.
// Queued hook events are delivered before it returns.
func (a *App) Close() error {
	a.controller.Stop()

	if err := a.controller.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	if a.hooks != nil {
		a.hooks.Close()
	}
	if err := a.detector.Close(); err != nil {
		log.Printf("Error closing detector: %v", err)
	}
	if a.ownsStore {
		return a.store.Close()
	}
	return nil
}

func (a *App) modeChanged(previous, current tracking.Mode) {
	if a.store != nil {
		err := a.store.ModeEvents().Create(&store.ModeEvent{
			Previous: previous.String(),
			Mode:     current.String(),
		})
		if err != nil {
			log.Printf("Failed to record mode change: %v", err)
		}
	}

	if a.hooks != nil {
		a.hooks.Dispatch(hook.Event{
			Type:      hook.EventModeChanged,
			Previous:  previous.String(),
			Mode:      current.String(),
			Timestamp: time.Now(),
		})
	}
}

func (a *App) streamEnded(res stream.Result) {
	var errMsg string
	if res.Err != nil {
		errMsg = res.Err.Error()
	}

	if a.store != nil {
		s := &store.StreamSession{
			ID:        res.ID,
			Mode:      res.Mode.String(),
			StartedAt: res.Started,
			EndedAt:   res.Ended,
			Frames:    res.Frames,
			Faces:     res.Faces,
			EndReason: string(res.Reason),
			Error:     errMsg,
		}
		if err := a.store.Sessions().Create(s); err != nil {
			log.Printf("Failed to record stream %s: %v", res.ID, err)
		}
	}

	if a.hooks != nil {
		a.hooks.Dispatch(hook.Event{
			Type: hook.EventStreamEnded,
			Mode: res.Mode.String(),
			Stream: &hook.StreamInfo{
				ID:         res.ID,
				Reason:     string(res.Reason),
				Frames:     res.Frames,
				Faces:      res.Faces,
				Error:      errMsg,
				DurationMs: res.Ended.Sub(res.Started).Milliseconds(),
			},
			Timestamp: res.Ended,
		})
	}
}
