package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/posync/internal/connectivity"
	"github.com/roach88/posync/internal/engine"
	"github.com/roach88/posync/internal/host"
	"github.com/roach88/posync/internal/order"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions

	// Clock and SessionIDs allow overriding the engine's clock and
	// session id generator (for testing).
	Clock      engine.Clock
	SessionIDs order.UIDGenerator
}

// SyncResult is a session report as printed by the sync command.
type SyncResult struct {
	engine.Report
	Status   engine.Status `json:"status"`
	Duration string        `json:"duration"`
}

func newSyncResult(rep engine.Report) SyncResult {
	if rep.Rejected == nil {
		rep.Rejected = []order.UID{}
	}
	return SyncResult{
		Report:   rep,
		Status:   rep.Status(),
		Duration: rep.Duration().String(),
	}
}

func (r SyncResult) renderText(w io.Writer) error {
	fmt.Fprintf(w, "Sync session %s: %s (%s)\n", r.SessionID, r.Status, r.Outcome)
	fmt.Fprintf(w, "  attempted: %d\n", r.Attempted)
	fmt.Fprintf(w, "  succeeded: %d\n", r.Succeeded)
	if len(r.Rejected) > 0 {
		uids := make([]string, len(r.Rejected))
		for i, uid := range r.Rejected {
			uids[i] = string(uid)
		}
		fmt.Fprintf(w, "  rejected:  %d (%s)\n", len(r.Rejected), strings.Join(uids, ", "))
	} else {
		fmt.Fprintf(w, "  rejected:  0\n")
	}
	fmt.Fprintf(w, "  remaining: %d\n", r.Remaining)
	_, err := fmt.Fprintf(w, "  duration:  %s\n", r.Duration)
	return err
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync session now",
		Long: `Drain the local queue once and print the session report.

Orders are sent one at a time, oldest first, until the queue is empty, the
server becomes unreachable or the session deadline passes.

Exit codes:
  0  every queued order was delivered
  1  the session ended with orders still queued or failed
  2  command error (bad config, database unreadable)

Example:
  posync sync
  posync sync --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	setupLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	inst, shutdown, err := setupTelemetry(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer shutdown(ctx)

	remote, err := newRemoteSubmitter(cfg, inst)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	engineOpts := append(cfg.EngineOptions(),
		engine.WithHost(host.NewOrderList()),
		engine.WithBroadcaster(connectivity.NewBroadcaster()),
		engine.WithLogger(slog.Default()),
		engine.WithClock(opts.Clock),
		engine.WithSessionIDs(opts.SessionIDs),
	)
	eng := engine.New(st, remote, engineOpts...)
	defer shutdownEngine(eng)

	ctx, span := inst.TracerProvider.Tracer("github.com/roach88/posync/internal/cli").Start(ctx, "sync.session")
	rep, err := eng.TriggerSync(ctx)
	span.SetAttributes(
		attribute.String("posync.session_id", rep.SessionID),
		attribute.String("posync.outcome", string(rep.Outcome)),
		attribute.Int("posync.attempted", rep.Attempted),
		attribute.Int("posync.succeeded", rep.Succeeded),
		attribute.Int("posync.remaining", rep.Remaining),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	var traceID string
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	if err != nil {
		code := CodeSync
		if engine.IsStorageError(err) {
			code = CodeStorage
		}
		_ = formatter.Error(code, err.Error(), newSyncResult(rep))
		return WrapExitError(ExitFailure, "sync session failed", err)
	}

	if err := formatter.SuccessWithTrace(newSyncResult(rep), traceID); err != nil {
		return err
	}
	if rep.Status() != engine.StatusSuccess {
		return NewExitError(ExitFailure, fmt.Sprintf("sync %s: %d order(s) still queued", rep.Status(), rep.Remaining))
	}
	return nil
}
