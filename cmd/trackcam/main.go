package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ayusman/trackcam/internal/app"
	"github.com/ayusman/trackcam/internal/config"
	"github.com/ayusman/trackcam/internal/tray"
)

var (
	configPath = flag.String("config", "", "Path to a YAML config file")
	host       = flag.String("host", "", "Listen host (overrides config)")
	port       = flag.Int("port", 0, "Listen port (overrides config)")
	camera     = flag.String("camera", "", "Camera device index, file or stream URL (overrides config)")
	staticDir  = flag.String("static", "", "Directory served under /static/ (overrides config)")
	withTray   = flag.Bool("tray", false, "Show a system tray menu")
)

func main() {
	flag.Parse()

	fmt.Println("Trackcam - Camera Tracking")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	a, err := app.New(app.Config{Settings: cfg})
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*withTray {
		fmt.Printf("Control panel at %s\n", a.URL())
		if err := a.Run(ctx); err != nil {
			log.Printf("Server failed: %v", err)
		}
		return
	}

	// The tray must own the main thread; the server runs beside it
	t := tray.New(a.Controller())
	a.Controller().Subscribe(t.ModeChanged)
	t.OnOpen(func() { openBrowser(a.URL()) })
	t.OnQuit(stop)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
		t.Quit()
	}()

	fmt.Printf("Control panel at %s\n", a.URL())
	t.Run()

	stop()
	if err := <-errCh; err != nil {
		log.Printf("Server failed: %v", err)
	}
}

// applyFlags lets command-line flags override the loaded configuration.
func applyFlags(cfg *config.Config) {
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *camera != "" {
		cfg.Camera.Source = *camera
	}
	if *staticDir != "" {
		cfg.Server.StaticDir = *staticDir
	}
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
		fmt.Fprintf(os.Stderr, "Open %s in a browser\n", url)
		return
	}
	go cmd.Wait()
}
