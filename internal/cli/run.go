package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/posync/internal/connectivity"
	"github.com/roach88/posync/internal/engine"
	"github.com/roach88/posync/internal/host"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Probe overrides the HTTP health probe (for testing).
	Probe connectivity.Probe
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sync daemon",
		Long: `Start the posync sync daemon.

The daemon opens the queue database (creating it if it doesn't exist),
probes the server's health endpoint and drains queued orders whenever
connectivity returns. Failed drains are retried after the configured
backoff. Stop it with Ctrl-C or SIGTERM.

Example:
  posync run --config ./posync.yaml
  posync run --db /tmp/queue.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts, cmd)
		},
	}

	return cmd
}

func runDaemon(opts *RunOptions, cmd *cobra.Command) error {
	setupLogging(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	inst, shutdown, err := setupTelemetry(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("error flushing telemetry", "error", err)
		}
	}()

	remote, err := newRemoteSubmitter(cfg, inst)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)
	slog.Info("database ready", "path", cfg.Database)

	signals := connectivity.NewBroadcaster()
	orders := host.NewOrderList()

	engineOpts := append(cfg.EngineOptions(),
		engine.WithHost(orders),
		engine.WithBroadcaster(signals),
		engine.WithLogger(slog.Default()),
	)
	eng := engine.New(st, remote, engineOpts...)
	defer shutdownEngine(eng)

	probe := opts.Probe
	if probe == nil {
		probe = connectivity.NewHTTPProbe(cfg.ResolvedHealthURL(), nil)
	}
	monitor := connectivity.NewMonitor(probe, signals,
		connectivity.WithInterval(cfg.ProbeInterval.Std()),
		connectivity.WithLogger(slog.Default()),
	)

	slog.Info("sync daemon starting",
		"endpoint", cfg.Endpoint,
		"health_url", cfg.ResolvedHealthURL(),
		"reject_policy", string(cfg.Policy()),
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Sync daemon started. Watching for connectivity...")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitor.Run(gctx)
	})
	g.Go(func() error {
		return eng.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "sync daemon error", err)
	}

	slog.Info("sync daemon stopped gracefully", "state", eng.State().String())
	return nil
}
