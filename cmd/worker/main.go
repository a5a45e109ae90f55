// Command worker runs one swarm simulation worker process: it joins the
// master's lobby, brings up its two ring peer connections, then drives
// the per-tick move/exchange/sense/decide pipeline until told to stop.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"swarmring/internal/buildinfo"
	"swarmring/internal/logging"
	"swarmring/internal/telemetry"
	"swarmring/internal/workerd"
)

func main() {
	tp := telemetry.NewProvider()
	defer func() {
		_ = telemetry.Shutdown(context.Background(), tp)
	}()

	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "worker <master-host>",
		Short:   "Run one swarm simulation worker",
		Version: buildinfo.Version,
		Args:    cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return workerd.Run(ctx, workerd.Options{MasterAddr: args[0]})
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}
