package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/verovision/internal/app"
	"github.com/ayusman/verovision/internal/server"
	"github.com/ayusman/verovision/internal/tray"
	"github.com/ayusman/verovision/pkg/logger"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the recognition session",
		RunE:  runServeCmd,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides addr)")
	cmd.Flags().BoolVar(&serveTray, "tray", false, "show the system tray (overrides tray)")
	cmd.Flags().BoolVar(&serveAutoStart, "start", false, "start recognizing immediately")
	cmd.Flags().StringVar(&serveStaticDir, "static-dir", "", "directory of web assets to serve at /")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = serveAddr
	}
	if cmd.Flags().Changed("tray") {
		cfg.Tray = serveTray
	}
	log := logger.Get()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := buildApp(ctx, cfg, st, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveAutoStart {
		if err := a.Start(ctx); err != nil {
			log.Error(ctx, "session did not start", logger.Error(err))
		}
	}

	staticDir := serveStaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.Info(ctx, "serving static files", logger.String("dir", staticDir))
	}

	srv := server.New(server.Config{StaticDir: staticDir, App: a})
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, cfg.Addr)
	}()

	if cfg.Tray {
		// systray owns the main thread until Quit.
		runTray(ctx, a, cfg.Addr, stop)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return <-errCh
}

func runTray(ctx context.Context, a *app.App, addr string, quit context.CancelFunc) {
	t := tray.New()
	t.OnToggle(func(running bool) error {
		if running {
			return a.Start(ctx)
		}
		a.Stop()
		return nil
	})
	t.OnClear(a.ClearSentence)
	t.OnOpen(func() {
		url := "http://localhost" + addr
		if !strings.HasPrefix(addr, ":") {
			url = "http://" + addr
		}
		if err := openBrowser(url); err != nil {
			logger.Get().Warn(ctx, "open browser", logger.Error(err))
		}
	})
	t.OnQuit(quit)

	updates, unsubscribe := a.Hub().Subscribe()
	defer unsubscribe()
	go t.Watch(ctx, updates)
	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Show(a.Snapshot())
	t.Run()
}
