package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"markestedt/slashgg/config"
	"markestedt/slashgg/keybind"
	"markestedt/slashgg/platform"
	"markestedt/slashgg/replay"
	"markestedt/slashgg/storage"
	"markestedt/slashgg/web"
)

// Agent coordinates hotkey detection, keybind capture and replays
type Agent struct {
	cfg      *config.Config
	settings *config.Settings
	renderer *keybind.Renderer
	capture  *keybind.Capture
	hotkey   platform.Hotkey
	link     *platform.MumbleLink
	engine   *replay.Engine
	runner   replay.Runner
	db       *storage.DB
	web      *web.Server
}

// NewAgent creates a new agent instance storing its state under dir
func NewAgent(cfg *config.Config, dir string) (*Agent, error) {
	settings := config.OpenSettings(filepath.Join(dir, config.SettingsFile))

	// Key names are resolved once; the table never changes afterwards
	names := platform.NewKeyNames()
	table := keybind.BuildScancodeTable(names)
	slog.Debug("Scancode table built", "keys", table.Len())

	window := platform.NewHostWindow(cfg.Host.WindowClass, cfg.Host.WindowTitle)

	var host platform.HostContext = noHost{}
	link, err := platform.OpenMumbleLink(cfg.Host.MumbleLink)
	if err != nil {
		slog.Warn("Host context unavailable, chat focus will not be detected", "error", err)
	} else {
		host = link
	}

	engine := replay.NewEngine(
		replay.Devices{
			Clipboard: platform.NewClipboard(window.Handle),
			Window:    window,
			Injector:  platform.NewInjector(),
			Host:      host,
			Names:     names,
		},
		settings,
		replay.Options{
			Message:      cfg.Replay.Message,
			Delay:        time.Duration(cfg.Replay.DelayMs) * time.Millisecond,
			Sequence:     replay.Sequence(cfg.Replay.Sequence),
			InstanceOnly: cfg.Host.InstanceOnly,
		},
	)

	runner, err := replay.NewRunner(replay.Model(cfg.Replay.Model), engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create replay runner: %w", err)
	}

	a := &Agent{
		cfg:      cfg,
		settings: settings,
		renderer: keybind.NewRenderer(names, table),
		capture:  keybind.NewCapture(settings),
		hotkey:   platform.NewHotkey(),
		link:     link,
		engine:   engine,
		runner:   runner,
	}

	if cfg.Storage.Enabled {
		db, err := storage.Open(dir)
		if err != nil {
			slog.Warn("Replay history disabled", "error", err)
		} else {
			a.db = db
		}
	}

	if cfg.Web.Enabled {
		a.web = web.NewServer(cfg.Web.Port, web.Deps{
			DB:       a.db,
			Settings: settings,
			Capture:  a.capture,
			Renderer: a.renderer,
			Table:    table,
			Trigger:  a,
			Status:   engine,
		})
	}

	// Capture only takes keys pressed inside the game, so a forgotten
	// capture never eats input typed into other applications
	a.capture.LimitTo(window.Foreground)

	engine.OnSession(a.record)

	return a, nil
}

// Settings returns the live user settings
func (a *Agent) Settings() *config.Settings {
	return a.settings
}

// Trigger schedules a replay from any trigger surface
func (a *Agent) Trigger() bool {
	ok := a.runner.Trigger()
	if a.web != nil {
		a.web.BroadcastStatus()
	}
	return ok
}

// Run starts the agent's main event loop
func (a *Agent) Run(ctx context.Context) error {
	// Parse hotkey combo
	combo, err := config.ParseHotkey(a.cfg.Hotkey.Combo)
	if err != nil {
		return fmt.Errorf("failed to parse hotkey: %w", err)
	}

	// Convert key to VK code (0 means modifier-only combo)
	vkCode, err := platform.VKCode(combo.Key)
	if err != nil {
		return fmt.Errorf("failed to get VK code: %w", err)
	}

	pkCombo := platform.KeyCombo{
		Ctrl:  combo.Ctrl,
		Shift: combo.Shift,
		Alt:   combo.Alt,
		Win:   combo.Win,
		Key:   vkCode,
	}

	a.runner.Start(ctx)
	defer a.close()

	// Keybind capture sees raw keys before the hotkey does
	events, err := a.hotkey.Listen(ctx, pkCombo, a.capture.Handle)
	if err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}

	go func() {
		if err := a.settings.Watch(ctx); err != nil {
			slog.Warn("Settings hot reload disabled", "error", err)
		}
	}()

	if a.web != nil {
		go func() {
			if err := a.web.Start(ctx); err != nil {
				slog.Error("Web server error", "error", err)
			}
		}()
	}

	slog.Info("slashgg started",
		"hotkey", a.cfg.Hotkey.Combo,
		"message", a.cfg.Replay.Message,
		"open_chat", a.renderer.Render(a.settings.OpenChat(), true),
		"model", a.cfg.Replay.Model,
	)

	// Main event loop
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if evt.Type == platform.Pressed {
				slog.Debug("Hotkey pressed")
				a.Trigger()
			}
		}
	}
}

func (a *Agent) close() {
	a.runner.Stop()
	if a.db != nil {
		a.db.Close()
	}
	if a.link != nil {
		a.link.Close()
	}
}

// record persists and broadcasts a finished session
func (a *Agent) record(s replay.Session) {
	var id int64
	if a.db != nil {
		r := replayRecord(s, a.renderer.Render(s.OpenChat, true))
		if err := a.db.SaveReplay(&r); err != nil {
			slog.Error("Failed to save replay", "session", s.ID, "error", err)
		} else {
			id = r.ID
		}
	}

	if a.web != nil {
		a.web.BroadcastReplay(id, s)
		a.web.BroadcastStatus()
	}
}

// replayRecord converts a session into its stored form
func replayRecord(s replay.Session, openChat string) storage.Replay {
	r := storage.Replay{
		SessionID:         s.ID,
		StartedAt:         s.Started,
		DurationMs:        s.Duration.Milliseconds(),
		Sequence:          string(s.Sequence),
		OpenChat:          openChat,
		ClipboardCaptured: s.ClipboardCaptured,
		ClipboardRestored: s.ClipboardRestored,
		FocusTimedOut:     s.FocusTimedOut,
		Outcome:           string(s.Outcome),
	}
	if s.Err != nil {
		r.ErrorMessage = s.Err.Error()
	}
	return r
}

// noHost stands in when the host context cannot be read: chat is always
// opened explicitly and the player is never considered in an instance.
type noHost struct{}

func (noHost) TextboxFocused() bool { return false }
func (noHost) InInstance() bool     { return false }
