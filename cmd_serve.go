package main

import (
	"time"

	"bscwallet/pkg/logger"
	"bscwallet/pkg/server"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port  int
		watch time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the headless status server",
		Long: `Serves task status and balance reports over HTTP and streams task events on /ws.
With --watch the configured addresses are re-checked on that interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = cfg.Server.Port
			}

			ctx, cancel := signalContext()
			defer cancel()

			opts := defaultAppOptions()
			opts.watchInterval = watch
			a := newApp(ctx, cfg, opts)
			defer a.close()

			if err := a.connect(ctx); err != nil {
				// balance requests fail with a network error until restart
				logger.WarnCF("serve", "Starting without a chain connection", map[string]any{"error": err.Error()})
			}
			a.watcher.Start(ctx)

			okColor.Fprintf(cmd.ErrOrStderr(), "Running in server mode on port %d...\n", port)
			return server.NewServer(a.bus, a.tasks, a.watcher).Start(ctx, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port for the API server (default from config)")
	cmd.Flags().DurationVar(&watch, "watch", 0, "Re-check the configured addresses on this interval (0 disables)")
	return cmd
}
