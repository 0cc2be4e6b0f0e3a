// Package tray shows a system tray icon with shortcuts to the control panel,
// an emergency stop and exit.
package tray

import (
	"os/exec"
	"sync"
	"sync/atomic"

	"fyne.io/systray"
	"github.com/rs/zerolog"
)

type Options struct {
	// PanelURL is opened by "Open control panel".
	PanelURL string
	// OnStop halts the robot. Optional.
	OnStop func()
	// OnExit is called once when "Exit" is clicked.
	OnExit func()
}

type Tray struct {
	opts         Options
	once         sync.Once
	shuttingDown atomic.Bool
	menuOpen     *systray.MenuItem
	menuStop     *systray.MenuItem
	menuExit     *systray.MenuItem
	log          zerolog.Logger
}

func New(opts Options, log zerolog.Logger) *Tray {
	return &Tray{
		opts: opts,
		log:  log.With().Str("component", "tray").Logger(),
	}
}

// Run shows the tray and blocks until Quit.
func (t *Tray) Run(iconData []byte) {
	systray.Run(func() {
		t.onReady(iconData)
	}, func() {
		t.shuttingDown.Store(true)
		t.log.Info().Msg("System tray exiting")
	})
}

// Quit removes the tray icon; Run returns afterwards.
func (t *Tray) Quit() {
	t.shuttingDown.Store(true)
	systray.Quit()
}

func (t *Tray) onReady(iconData []byte) {
	if iconData != nil {
		systray.SetIcon(iconData)
	}
	systray.SetTitle("SAFEM8")
	systray.SetTooltip("SAFEM8 controller - " + t.opts.PanelURL)

	t.menuOpen = systray.AddMenuItem("Open control panel", "Open the web control panel")
	t.menuStop = systray.AddMenuItem("Stop robot", "Send a stop command")
	if t.opts.OnStop == nil {
		t.menuStop.Disable()
	}
	systray.AddSeparator()
	t.menuExit = systray.AddMenuItem("Exit", "Quit application")

	go t.handleMenuClicks()

	t.log.Info().Msg("System tray initialized")
}

func (t *Tray) handleMenuClicks() {
	for {
		select {
		case <-t.menuOpen.ClickedCh:
			if !t.shuttingDown.Load() {
				t.openBrowser()
			}
		case <-t.menuStop.ClickedCh:
			if !t.shuttingDown.Load() && t.opts.OnStop != nil {
				t.log.Info().Msg("Stop requested from tray")
				t.opts.OnStop()
			}
		case <-t.menuExit.ClickedCh:
			if t.shuttingDown.CompareAndSwap(false, true) {
				if t.opts.OnExit != nil {
					t.once.Do(t.opts.OnExit)
				}
				systray.Quit()
				return
			}
		}
	}
}

func (t *Tray) openBrowser() {
	name, args := browserCommand(runtimeGOOS, t.opts.PanelURL)
	if err := exec.Command(name, args...).Start(); err != nil {
		t.log.Warn().Err(err).Str("url", t.opts.PanelURL).Msg("Failed to open browser")
	}
}

func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		return "open", []string{url}
	default:
		return "xdg-open", []string{url}
	}
}
