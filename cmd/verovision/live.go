package main

import (
	"github.com/spf13/cobra"

	"github.com/ayusman/verovision/internal/liveview"
	"github.com/ayusman/verovision/pkg/logger"
)

func newLiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Recognize from the camera in a terminal view",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, err := setup(ctx)
			if err != nil {
				return err
			}

			// The alternate screen owns the terminal; keep stderr quiet.
			if cfg.LogLevel != "debug" {
				_ = logger.SetLevelString("error")
			}

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

			return liveview.Run(ctx, a, a.Hub())
		},
	}
}
