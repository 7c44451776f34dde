package app

import (
	"context"
	"encoding/json"
	"image"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/trackcam/internal/capture"
	"github.com/ayusman/trackcam/internal/config"
	"github.com/ayusman/trackcam/internal/detector"
	"github.com/ayusman/trackcam/internal/store"
	"github.com/ayusman/trackcam/internal/tracking"
	"github.com/ayusman/trackcam/testdata"
)

func newTestApp(t *testing.T) (*App, *capture.MockCamera) {
	t.Helper()

	frames := testdata.Sequence(3, testdata.Width, testdata.Height)
	t.Cleanup(func() { testdata.CloseAll(frames) })

	cam := capture.NewMockCamera(frames, true)
	cam.SetFPS(100)

	det := detector.NewMockDetector()
	det.SetRects([]image.Rectangle{detector.CenterFace(testdata.Width, testdata.Height)})

	settings := config.Default()
	settings.Store.Path = filepath.Join(t.TempDir(), "data", "trackcam.db")
	settings.Hooks.Dir = ""

	a, err := New(Config{Settings: settings, Camera: cam, Detector: det})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, cam
}

func TestNew_Defaults(t *testing.T) {
	settings := config.Default()
	settings.Store.Enabled = false
	settings.Detector.Cascade = filepath.Join(t.TempDir(), "missing.xml")
	settings.Hooks.Dir = filepath.Join(t.TempDir(), "no-hooks")

	a, err := New(Config{Settings: settings, Camera: capture.NewMockCamera(nil, false)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Store() != nil {
		t.Error("Store() should be nil when history is disabled")
	}
	if _, ok := a.Detector().(*detector.MockDetector); !ok {
		t.Errorf("Detector() = %T, want fallback when the cascade is missing", a.Detector())
	}
	if got := a.Controller().CurrentMode(); got != tracking.ModeNone {
		t.Errorf("initial mode = %v, want none", got)
	}
	if a.Hooks() != nil {
		t.Error("Hooks() should be nil when the hook directory is missing")
	}
	if got := a.URL(); got != "http://localhost:8080/" {
		t.Errorf("URL() = %q", got)
	}
}

func TestApp_RecordsModeChanges(t *testing.T) {
	a, _ := newTestApp(t)

	a.Controller().Start(tracking.ModeFace)
	a.Controller().Start(tracking.ModeObject)
	a.Controller().Stop()

	events, err := a.Store().ModeEvents().List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := [][2]string{
		{"object_tracking", "none"},
		{"face_tracking", "object_tracking"},
		{"none", "face_tracking"},
	}
	if len(events) != len(want) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(want))
	}
	for i, w := range want {
		if events[i].Previous != w[0] || events[i].Mode != w[1] {
			t.Errorf("events[%d] = %s -> %s, want %s -> %s", i, events[i].Previous, events[i].Mode, w[0], w[1])
		}
	}
}

func TestApp_RecordsStreams(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a, cam := newTestApp(t)
	ts := httptest.NewServer(a.Handler())
	defer ts.Close()
	defer a.Controller().Stop()

	client := ts.Client()

	resp, err := client.Get(ts.URL + "/start/face")
	if err != nil {
		t.Fatalf("GET /start/face error = %v", err)
	}
	resp.Body.Close()

	feed, err := client.Get(ts.URL + "/video_feed")
	if err != nil {
		t.Fatalf("GET /video_feed error = %v", err)
	}
	defer feed.Body.Close()

	if _, err := testdata.NewChunkReader(feed.Body).ReadN(3); err != nil {
		t.Fatalf("ReadN() error = %v", err)
	}

	resp, err = client.Get(ts.URL + "/stop")
	if err != nil {
		t.Fatalf("GET /stop error = %v", err)
	}
	resp.Body.Close()

	var sessions []*store.StreamSession
	deadline := time.Now().Add(2 * time.Second)
	for len(sessions) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream was not recorded")
		}
		time.Sleep(10 * time.Millisecond)
		sessions, _ = a.Store().Sessions().List(0)
	}

	s := sessions[0]
	if s.Mode != "face_tracking" || s.EndReason != "mode_changed" {
		t.Errorf("session = %+v", s)
	}
	if s.Frames < 3 || s.Faces != s.Frames {
		t.Errorf("frames = %d faces = %d, want >= 3 with one face each", s.Frames, s.Faces)
	}

	// The history endpoint serves the same record
	resp, err = client.Get(ts.URL + "/api/sessions/" + s.ID)
	if err != nil {
		t.Fatalf("GET /api/sessions/%s error = %v", s.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got store.StreamSession
	json.NewDecoder(resp.Body).Decode(&got)
	if got.ID != s.ID {
		t.Errorf("GET session id = %q, want %q", got.ID, s.ID)
	}

	if cam.Opens() != 1 {
		t.Errorf("camera opened %d times, want 1", cam.Opens())
	}
}

func TestApp_PrunesHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trackcam.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		s.Sessions().Create(&store.StreamSession{
			ID:        string(rune('a' + i)),
			Mode:      "object_tracking",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			EndedAt:   base.Add(time.Duration(i)*time.Minute + time.Second),
			EndReason: "cancelled",
		})
	}

	settings := config.Default()
	settings.Store.MaxSessions = 2

	a, err := New(Config{
		Settings: settings,
		Camera:   capture.NewMockCamera(nil, false),
		Detector: detector.NewMockDetector(),
		Store:    s,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if n, _ := s.Sessions().Count(); n != 2 {
		t.Errorf("Count() = %d after startup, want 2", n)
	}

	// A store passed in stays open after Close
	a.Close()
	if _, err := s.Sessions().Count(); err != nil {
		t.Errorf("store closed by App: %v", err)
	}
}

func TestApp_Run(t *testing.T) {
	a, _ := newTestApp(t)

	// Pick a free port for the configured address
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	a.settings.Server.Host = "127.0.0.1"
	a.settings.Server.Port = port

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = http.Get(a.URL() + "api/health")
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestApp_RunsHooks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell hooks are not supported on Windows")
	}

	hooksDir := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "events.log")

	hookDir := filepath.Join(hooksDir, "log")
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"log","executable":"run.sh","events":["mode_changed"]}`
	if err := os.WriteFile(filepath.Join(hookDir, "hook.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\n{ cat; echo; } >> " + logPath + "\n"
	if err := os.WriteFile(filepath.Join(hookDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	settings := config.Default()
	settings.Store.Enabled = false
	settings.Hooks.Dir = hooksDir

	a, err := New(Config{
		Settings: settings,
		Camera:   capture.NewMockCamera(nil, false),
		Detector: detector.NewMockDetector(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Hooks() == nil {
		t.Fatal("Hooks() = nil, want a dispatcher for the discovered hook")
	}

	a.Controller().Start(tracking.ModeFace)
	a.Controller().Start(tracking.ModeObject)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var status struct {
		Hooks *struct {
			Dir   string `json:"dir"`
			Hooks int    `json:"hooks"`
		} `json:"hooks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.Hooks == nil || status.Hooks.Dir != hooksDir || status.Hooks.Hooks != 1 {
		t.Errorf("status hooks = %+v, want one hook in %s", status.Hooks, hooksDir)
	}

	// Close stops tracking and drains the queue
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("hook did not run: %v", err)
	}

	var modes []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var e struct {
			Type string `json:"type"`
			Mode string `json:"mode"`
		}
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		if e.Type != "mode_changed" {
			t.Errorf("event type = %q", e.Type)
		}
		modes = append(modes, e.Mode)
	}

	want := []string{"face_tracking", "object_tracking", "none"}
	if strings.Join(modes, ",") != strings.Join(want, ",") {
		t.Errorf("hook saw modes %v, want %v", modes, want)
	}
}

func TestApp_ServesStaticDir(t *testing.T) {
	staticDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(staticDir, "app.css"), []byte("body{}"), 0644); err != nil {
		t.Fatal(err)
	}

	settings := config.Default()
	settings.Store.Enabled = false
	settings.Hooks.Dir = ""
	settings.Server.StaticDir = staticDir

	a, err := New(Config{
		Settings: settings,
		Camera:   capture.NewMockCamera(nil, false),
		Detector: detector.NewMockDetector(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /static/app.css status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "body{}" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
