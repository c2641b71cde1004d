package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/roach88/posync/internal/connectivity"
	"github.com/roach88/posync/internal/engine"
	"github.com/roach88/posync/internal/host"
	"github.com/roach88/posync/internal/order"
	"github.com/roach88/posync/internal/store"
	"github.com/roach88/posync/internal/submit"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	ID          string
	UID         string
	PayloadFile string

	// UIDs allows overriding the uid generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	UIDs order.UIDGenerator
}

// SubmitResult is the outcome of one submit command.
type SubmitResult struct {
	ID     order.ID  `json:"id"`
	UID    order.UID `json:"uid"`
	Queued bool      `json:"queued"`
}

func (r SubmitResult) renderText(w io.Writer) error {
	if r.Queued {
		_, err := fmt.Fprintf(w, "Order %s queued for sync (uid %s)\n", r.ID, r.UID)
		return err
	}
	_, err := fmt.Fprintf(w, "Order %s accepted (uid %s)\n", r.ID, r.UID)
	return err
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one order, queueing it if the server is unreachable",
		Long: `Submit one order to the configured endpoint.

If the server cannot be reached, or older orders are still queued, the order
is stored in the local queue and reported as queued. A rejection by the
server is reported as a failure and nothing is queued.

The payload is read from --payload-file ("-" for stdin) and must be JSON.

Example:
  posync submit --id 1042 --payload-file order.json
  echo '{"total":1250}' | posync submit --id 1043 --uid 7f3c --payload-file -`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "local order reference (required)")
	cmd.Flags().StringVar(&opts.UID, "uid", "", "idempotency key (generated when empty)")
	cmd.Flags().StringVar(&opts.PayloadFile, "payload-file", "", `JSON payload file, "-" for stdin (defaults to {})`)
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command) error {
	setupLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	o, err := buildOrder(opts, cmd.InOrStdin())
	if err != nil {
		return err
	}

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

	orders := host.NewOrderList()
	orders.RegisterOrder(o)

	gateway := engine.NewOfflineSubmitter(remote, st, orders, nil, connectivity.NewBroadcaster())
	res, err := gateway.Submit(ctx, []order.PendingOrder{o}, submit.Options{
		Timeout: cfg.SubmitTimeout.Std(),
	})
	if rej, ok := submit.AsRejected(err); ok {
		_ = formatter.Error(CodeRejected, "order rejected by server", rej.Reasons)
		return WrapExitError(ExitFailure, "order rejected", err)
	}
	if err != nil {
		code := CodeSubmit
		if store.IsStorageError(err) {
			code = CodeStorage
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "submit failed", err)
	}
	if res.Failed.Has(o.UID) {
		_ = formatter.Error(CodeRejected, "order rejected by server", nil)
		return NewExitError(ExitFailure, "order rejected")
	}

	queued := true
	if _, err := st.Get(ctx, o.UID); errors.Is(err, store.ErrNotFound) {
		queued = false
	} else if err != nil {
		return WrapExitError(ExitFailure, "failed to read queue", err)
	}
	slog.Debug("order submitted", "uid", o.UID, "queued", queued, "cached", orders.Len())

	return formatter.Success(SubmitResult{ID: o.ID, UID: o.UID, Queued: queued})
}

// buildOrder assembles the order from flags, generating a uid if needed.
func buildOrder(opts *SubmitOptions, stdin io.Reader) (order.PendingOrder, error) {
	if strings.TrimSpace(opts.ID) == "" {
		return order.PendingOrder{}, NewExitError(ExitCommandError, "--id must not be empty")
	}

	payload, err := readPayload(opts.PayloadFile, stdin)
	if err != nil {
		return order.PendingOrder{}, err
	}

	uid := order.UID(opts.UID)
	if strings.TrimSpace(opts.UID) == "" {
		gen := opts.UIDs
		if gen == nil {
			gen = order.UUIDv7Generator{}
		}
		uid = gen.Generate()
	}

	o, err := order.PendingOrder{ID: order.ID(opts.ID), UID: uid, Payload: payload}.Normalized()
	if err != nil {
		return order.PendingOrder{}, WrapExitError(ExitCommandError, "invalid order", err)
	}
	return o, nil
}

// readPayload loads the JSON payload from path, or stdin for "-".
func readPayload(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
		return []byte(`{}`), nil
	case "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read payload", err)
	}
	if !json.Valid(data) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("payload in %s is not valid JSON", payloadSource(path)))
	}
	return data, nil
}

func payloadSource(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}
