package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// PurgeOptions holds flags for the purge command.
type PurgeOptions struct {
	*RootOptions
	Yes bool
}

// PurgeResult reports how many orders were discarded.
type PurgeResult struct {
	Removed int `json:"removed"`
}

func (r PurgeResult) renderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Purged %d pending order(s).\n", r.Removed)
	return err
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PurgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Discard every queued order",
		Long: `Discard every order in the local queue without sending it.

Purged orders are lost. The command refuses to run without --yes.

Example:
  posync purge --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm discarding all queued orders")

	return cmd
}

func runPurge(opts *PurgeOptions, cmd *cobra.Command) error {
	if !opts.Yes {
		return NewExitError(ExitCommandError, "refusing to purge without --yes")
	}

	setupLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	n, err := st.Len(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read queue", err)
	}
	if err := st.Clear(ctx); err != nil {
		_ = formatter.Error(CodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to purge queue", err)
	}
	slog.Warn("queue purged", "removed", n, "path", cfg.Database)

	return formatter.Success(PurgeResult{Removed: n})
}
