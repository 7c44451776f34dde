// Package tray provides a system tray menu for switching the tracking mode.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/trackcam/internal/tracking"
)

// Controller is the part of the tracking controller the tray drives.
type Controller interface {
	Start(mode tracking.Mode) error
	Stop()
	CurrentMode() tracking.Mode
}

// Tray represents the system tray application.
type Tray struct {
	controller Controller
	onOpen     func()
	onQuit     func()
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuFace   *systray.MenuItem
	menuObject *systray.MenuItem
	menuStop   *systray.MenuItem
}

// New creates a new Tray driving controller.
func New(controller Controller) *Tray {
	return &Tray{controller: controller}
}

// OnOpen sets the callback function to be called when the control panel
// menu item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Trackcam")
	systray.SetTooltip("Trackcam camera tracking")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("", "Current tracking mode")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuFace = systray.AddMenuItem("Start Face Tracking", "Annotate faces in the video feed")
	t.menuObject = systray.AddMenuItem("Start Object Tracking", "Stream the video feed without annotation")
	t.menuStop = systray.AddMenuItem("Stop Tracking", "End all video feeds")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Control Panel...", "Open the control panel in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Trackcam")
	t.mu.Unlock()

	t.ModeChanged(tracking.ModeNone, t.controller.CurrentMode())

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuFace.ClickedCh:
				t.controller.Start(tracking.ModeFace)
			case <-t.menuObject.ClickedCh:
				t.controller.Start(tracking.ModeObject)
			case <-t.menuStop.ClickedCh:
				t.controller.Stop()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// ModeChanged updates the menu for the new mode. It has the signature of a
// tracking.Listener so it can be subscribed to the controller directly.
func (t *Tray) ModeChanged(_, current tracking.Mode) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus == nil {
		return
	}

	t.menuStatus.SetTitle(StatusTitle(current))
	setEnabled(t.menuFace, current != tracking.ModeFace)
	setEnabled(t.menuObject, current != tracking.ModeObject)
	setEnabled(t.menuStop, current.Active())
}

// StatusTitle is the text of the status line for mode.
func StatusTitle(mode tracking.Mode) string {
	switch mode {
	case tracking.ModeFace:
		return "● Face tracking"
	case tracking.ModeObject:
		return "● Object tracking"
	default:
		return "○ Stopped"
	}
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

// handleOpen handles the control panel menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}
