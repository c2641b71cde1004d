package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/posync/internal/order"
)

// ListResult is the queue as printed by the list command.
type ListResult struct {
	Count  int                  `json:"count"`
	Orders []order.PendingOrder `json:"orders"`
}

func (r ListResult) renderText(w io.Writer) error {
	if r.Count == 0 {
		_, err := fmt.Fprintln(w, "No pending orders.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tUID\tID\tQUEUED AT")
	for _, o := range r.Orders {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.Seq, o.UID, o.ID, o.QueuedAt.UTC().Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d pending order(s)\n", r.Count)
	return err
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued orders in sync order",
		Long: `List the orders waiting in the local queue, oldest first.

Example:
  posync list
  posync list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}

	return cmd
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	setupLogging(opts, cmd.ErrOrStderr())
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	orders, err := st.All(commandContext(cmd))
	if err != nil {
		_ = formatter.Error(CodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read queue", err)
	}

	return formatter.Success(ListResult{Count: len(orders), Orders: orders})
}
