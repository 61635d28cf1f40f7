// Package tray provides a desktop system tray for controlling the recognition
// session.
package tray

import (
	"context"
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"github.com/mattn/go-runewidth"

	"github.com/ayusman/verovision/internal/app"
)

// sentenceWidth is the number of terminal cells of sentence shown in the menu.
const sentenceWidth = 28

// Tray represents the system tray application.
type Tray struct {
	onToggle func(running bool) error
	onClear  func()
	onOpen   func()
	onQuit   func()
	running  bool
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuCurrent  *systray.MenuItem
	menuSentence *systray.MenuItem
}

// New creates a new Tray instance. The session is assumed stopped.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback run when the user starts or stops the session.
// The state only flips when the callback succeeds.
func (t *Tray) OnToggle(fn func(running bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnClear sets the callback run when the clear menu item is clicked.
func (t *Tray) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnOpen sets the callback run when the open menu item is clicked.
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
	systray.SetTitle("VeroVision")
	systray.SetTooltip("VeroVision sign-to-text")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or stop recognition")
	systray.AddSeparator()

	t.menuCurrent = systray.AddMenuItem(currentTitle(app.Update{Display: "--"}), "Sign being held")
	t.menuCurrent.Disable()
	t.menuSentence = systray.AddMenuItem(sentenceTitle(""), "Committed text")
	t.menuSentence.Disable()
	t.mu.Unlock()

	menuClear := systray.AddMenuItem("Clear sentence", "Erase the committed text")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in browser...", "Open the live view in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit VeroVision")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuClear.ClickedCh:
				t.call(func(t *Tray) func() { return t.onClear })
			case <-menuOpen.ClickedCh:
				t.call(func(t *Tray) func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle asks for the opposite of the current state.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	want := !t.running
	callback := t.onToggle
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		if err := callback(want); err != nil {
			t.setTitle(t.menuToggle, "⚠ "+err.Error())
			return
		}
	}
	t.setRunning(want)
}

func (t *Tray) call(pick func(*Tray) func()) {
	t.mu.RLock()
	callback := pick(t)
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.call(func(t *Tray) func() { return t.onQuit })
	systray.Quit()
}

func (t *Tray) setRunning(running bool) {
	t.mu.Lock()
	t.running = running
	t.mu.Unlock()
	t.setTitle(t.menuToggle, toggleTitle(running))
}

func (t *Tray) setTitle(item *systray.MenuItem, title string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if item != nil {
		item.SetTitle(title)
	}
}

// Show reflects one session update in the menu.
func (t *Tray) Show(u app.Update) {
	t.mu.RLock()
	changed := u.Running != t.running
	t.mu.RUnlock()
	if changed {
		t.setRunning(u.Running)
	}
	t.setTitle(t.menuCurrent, currentTitle(u))
	t.setTitle(t.menuSentence, sentenceTitle(u.Sentence))
}

// Watch shows updates until the channel closes or ctx ends.
func (t *Tray) Watch(ctx context.Context, updates <-chan app.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			t.Show(u)
		}
	}
}

// IsRunning returns the session state the tray last saw.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

func toggleTitle(running bool) string {
	if running {
		return "● Running"
	}
	return "○ Stopped"
}

func currentTitle(u app.Update) string {
	if u.Progress <= 0 {
		return "Current: " + u.Display
	}
	return fmt.Sprintf("Current: %s %.0f%%", u.Display, u.Progress)
}

// sentenceTitle shows the tail of the sentence, the part being typed.
func sentenceTitle(sentence string) string {
	if sentence == "" {
		return "Sentence: (empty)"
	}
	if runewidth.StringWidth(sentence) > sentenceWidth {
		runes := []rune(sentence)
		for runewidth.StringWidth(string(runes)) > sentenceWidth-1 {
			runes = runes[1:]
		}
		sentence = "…" + string(runes)
	}
	return "Sentence: " + sentence
}
