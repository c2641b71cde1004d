package cli

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/posync/internal/config"
	"github.com/roach88/posync/internal/engine"
	"github.com/roach88/posync/internal/observability"
	"github.com/roach88/posync/internal/store"
	"github.com/roach88/posync/internal/submit"
)

// serviceName identifies posync in exported telemetry.
const serviceName = "posync"

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// setupLogging installs the default slog handler on w.
func setupLogging(opts *RootOptions, w io.Writer) {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// loadConfig merges the config file, the environment and the --db flag.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// openStore opens the queue database. The caller closes it.
func openStore(cfg config.Config) (*store.Store, error) {
	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// setupTelemetry returns exporting instruments when cfg.Trace is set and
// no-op ones otherwise. shutdown is never nil.
func setupTelemetry(ctx context.Context, cfg config.Config, w io.Writer) (*observability.Instruments, func(context.Context) error, error) {
	if !cfg.Trace {
		return observability.Noop(), func(context.Context) error { return nil }, nil
	}
	inst, shutdown, err := observability.Init(ctx, serviceName, w)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to initialise tracing", err)
	}
	return inst, shutdown, nil
}

// newRemoteSubmitter builds the HTTP submitter for cfg.Endpoint.
func newRemoteSubmitter(cfg config.Config, inst *observability.Instruments) (submit.Submitter, error) {
	transport, err := submit.NewHTTPTransport(cfg.Endpoint, nil)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "endpoint not configured", err)
	}
	adapter := submit.NewAdapter(transport, submit.WithLogger(slog.Default()))
	return submit.NewTraced(adapter,
		submit.WithTracerProvider(inst.TracerProvider),
		submit.WithMeterProvider(inst.MeterProvider),
	), nil
}

// shutdownGrace bounds how long shutdown waits for an in-flight order.
const shutdownGrace = 10 * time.Second

// shutdownEngine stops eng and waits for its session to let go of the store.
func shutdownEngine(eng *engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := eng.Shutdown(ctx); err != nil {
		slog.Warn("sync session still running at shutdown", "error", err)
	}
}

// commandContext returns cmd's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
