// Package main provides the CLI entrypoint for VeroVision.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ayusman/verovision/internal/app"
	"github.com/ayusman/verovision/internal/config"
	"github.com/ayusman/verovision/internal/store"
	"github.com/ayusman/verovision/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	serveAddr      string
	serveTray      bool
	serveAutoStart bool
	serveStaticDir string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "verovision",
		Short:         "Sign-language fingerspelling to text",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLiveCmd())
	rootCmd.AddCommand(newSamplesCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// setup loads .env, the layered config and the logger.
func setup(ctx context.Context) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}

// buildApp wires the application and loads its classifier and typer.
func buildApp(ctx context.Context, cfg *config.Config, st *store.Store, source app.LandmarkSource) (*app.App, error) {
	a, err := app.New(app.Config{Settings: cfg, Store: st, Source: source})
	if err != nil {
		return nil, err
	}

	log := logger.Get()
	if err := a.DiscoverPlugins(); err != nil {
		log.Warn(ctx, "plugin discovery failed", logger.Error(err))
	}
	if err := a.LoadClassifier(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.StartTyper(ctx); err != nil {
		log.Warn(ctx, "commit typing disabled", logger.Error(err))
	}
	return a, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "verovision %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
}

// openBrowser opens url with the platform's default handler.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.verovision/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	candidates := []string{"web", "../web", "../../web"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".verovision", "web"))
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
