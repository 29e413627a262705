package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"markestedt/slashgg/config"
	"markestedt/slashgg/keybind"
	"markestedt/slashgg/platform"
	"markestedt/slashgg/storage"
	"markestedt/slashgg/systray"
)

//go:embed icon.ico
var iconData []byte

var (
	flagConfig string
	flagNoTray bool
	flagLimit  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slashgg",
	Short: "Send /gg to the game chat with one key",
	Long: `slashgg listens for a global hotkey and types a fixed chat message
into the game window: it opens chat, pastes the message and submits it,
then puts your clipboard back.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, dir, err := loadConfig()
		if err != nil {
			return err
		}
		return runAgent(cfg, dir)
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the key names of the current keyboard layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, dir, err := loadConfig()
		if err != nil {
			return err
		}

		names := platform.NewKeyNames()
		table := keybind.BuildScancodeTable(names)
		renderer := keybind.NewRenderer(names, table)

		out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(out, "SCANCODE\tNAME")
		for _, code := range table.Codes() {
			name, _ := table.Lookup(code)
			fmt.Fprintf(out, "0x%04X\t%s\n", code, name)
		}
		if err := out.Flush(); err != nil {
			return err
		}

		settings := config.OpenSettings(filepath.Join(dir, config.SettingsFile))
		fmt.Fprintf(cmd.OutOrStdout(), "\nOpen chat: %s\n", renderer.Render(settings.OpenChat(), true))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent replays",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, dir, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := storage.Open(dir)
		if err != nil {
			return err
		}
		defer db.Close()

		replays, err := db.GetReplays(flagLimit, 0)
		if err != nil {
			return err
		}

		out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(out, "STARTED\tOUTCOME\tSEQUENCE\tOPEN CHAT\tDURATION\tERROR")
		for _, r := range replays {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%dms\t%s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Outcome, r.Sequence, r.OpenChat, r.DurationMs, r.ErrorMessage)
		}
		return out.Flush()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to config.toml (default is in the user config directory)")
	rootCmd.Flags().BoolVar(&flagNoTray, "no-tray", false, "Run without the system tray icon")
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "Number of replays to show")

	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig loads the configuration, sets up logging and returns the state directory
func loadConfig() (*config.Config, string, error) {
	path := flagConfig
	if path == "" {
		var err error
		path, err = config.ConfigPath()
		if err != nil {
			return nil, "", err
		}
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", path, err)
	}

	// Setup logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Debug("Configuration loaded", "path", path)
	return cfg, filepath.Dir(path), nil
}

func runAgent(cfg *config.Config, dir string) error {
	// Create agent
	agent, err := NewAgent(cfg, dir)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if flagNoTray {
		if err := agent.Run(ctx); err != nil {
			return err
		}
		slog.Info("slashgg stopped")
		return nil
	}

	webPort := 0
	if cfg.Web.Enabled {
		webPort = cfg.Web.Port
	}
	tray := systray.NewSystrayManager(cfg.Replay.Message, webPort, iconData, agent.Settings(), agent)

	// The tray owns the main thread; the agent runs beside it
	errCh := make(chan error, 1)
	go func() {
		errCh <- agent.Run(ctx)
		tray.Stop()
	}()

	go func() {
		<-tray.WaitForQuit()
		cancel()
	}()

	tray.Run()
	cancel()

	if err := <-errCh; err != nil {
		return err
	}
	slog.Info("slashgg stopped")
	return nil
}
