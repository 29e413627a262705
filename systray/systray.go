package systray

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/getlantern/systray"
)

// Options is the subset of user settings the tray menu shows and edits
type Options interface {
	Visible() bool
	RestoreClipboard() bool
	SetVisible(bool) error
	SetRestoreClipboard(bool) error
	OnChange(fn func())
}

// Trigger schedules a replay
type Trigger interface {
	Trigger() bool
}

// SystrayManager manages the system tray icon and menu
type SystrayManager struct {
	message  string
	webPort  int
	iconData []byte
	options  Options
	trigger  Trigger
	quit     chan struct{}
}

// NewSystrayManager creates a new systray manager. webPort 0 hides the dashboard entry.
func NewSystrayManager(message string, webPort int, iconData []byte, options Options, trigger Trigger) *SystrayManager {
	return &SystrayManager{
		message:  message,
		webPort:  webPort,
		iconData: iconData,
		options:  options,
		trigger:  trigger,
		quit:     make(chan struct{}),
	}
}

// Run starts the system tray (blocking call)
func (m *SystrayManager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *SystrayManager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *SystrayManager) WaitForQuit() <-chan struct{} {
	return m.quit
}

// onReady is called when the systray is ready
func (m *SystrayManager) onReady() {
	// Set icon
	if len(m.iconData) > 0 {
		systray.SetIcon(m.iconData)
	}

	// Set tooltip
	systray.SetTitle("slashgg")
	systray.SetTooltip("slashgg - " + m.message)

	// Add menu items
	mSend := systray.AddMenuItem("Send "+m.message, "Open chat and send "+m.message)
	systray.AddSeparator()
	mVisible := systray.AddMenuItemCheckbox("Show button", "Show the send control", m.options.Visible())
	mRestore := systray.AddMenuItemCheckbox("Restore clipboard", "Put the previous clipboard back after sending", m.options.RestoreClipboard())

	var openDashboard <-chan struct{}
	if m.webPort > 0 {
		mOpenWebUI := systray.AddMenuItem("Open Dashboard", "Open the slashgg web dashboard")
		openDashboard = mOpenWebUI.ClickedCh
	}

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit slashgg")

	refresh := func() {
		setChecked(mVisible, m.options.Visible())
		setChecked(mRestore, m.options.RestoreClipboard())
		if m.options.Visible() {
			mSend.Show()
		} else {
			mSend.Hide()
		}
	}
	refresh()
	m.options.OnChange(refresh)

	// Handle menu clicks
	go func() {
		for {
			select {
			case <-mSend.ClickedCh:
				if !m.trigger.Trigger() {
					slog.Debug("Tray trigger coalesced")
				}
			case <-mVisible.ClickedCh:
				if err := m.options.SetVisible(!mVisible.Checked()); err != nil {
					slog.Error("Failed to save settings", "error", err)
				}
			case <-mRestore.ClickedCh:
				if err := m.options.SetRestoreClipboard(!mRestore.Checked()); err != nil {
					slog.Error("Failed to save settings", "error", err)
				}
			case <-openDashboard:
				m.openWebUI()
			case <-mQuit.ClickedCh:
				slog.Info("User requested quit from system tray")
				close(m.quit)
				systray.Quit()
				return
			}
		}
	}()
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// onExit is called when the systray is exiting
func (m *SystrayManager) onExit() {
	slog.Info("System tray exited")
}

// openWebUI opens the web UI in the default browser
func (m *SystrayManager) openWebUI() {
	url := fmt.Sprintf("http://localhost:%d", m.webPort)
	slog.Info("Opening web UI", "url", url)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		slog.Error("Unsupported platform for opening browser", "platform", runtime.GOOS)
		return
	}

	if err := cmd.Start(); err != nil {
		slog.Error("Failed to open web UI", "error", err)
	}
}
