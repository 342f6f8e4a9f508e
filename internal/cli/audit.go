package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/queryir"
	"github.com/roach88/exproxy/internal/store"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	TxID     string
	Name     string
	Emitter  string
	Where    []string
	Limit    int
	Receipts bool
}

// AuditResult holds the audit listing.
type AuditResult struct {
	Events   []ir.Event   `json:"events,omitempty"`
	Receipts []ir.Receipt `json:"receipts,omitempty"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List the event log or call receipts",
		Long: `List audit events in log order, optionally filtered by transaction,
event name or emitter. With --receipts the receipts of every external call are
listed instead, reverted calls included.

--where takes field=value or field=a|b and may repeat. Fields are the log's
columns or fields.<key> for a key of the event fields (the call result for
receipts).

Examples:
  exproxy audit --db ./exproxy.db
  exproxy audit --db ./exproxy.db --name ProxyFunctionUpdated
  exproxy audit --db ./exproxy.db --name Transfer --where fields.to=0x...
  exproxy audit --db ./exproxy.db --receipts --where status=reverted --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TxID, "tx", "", "only events of this transaction")
	cmd.Flags().StringVar(&opts.Name, "name", "", "only events with this name")
	cmd.Flags().StringVar(&opts.Emitter, "emitter", "", "only events emitted by this address")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "field=value filter (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")
	cmd.Flags().BoolVar(&opts.Receipts, "receipts", false, "list receipts instead of events")

	return cmd
}

func runAudit(opts *AuditOptions, cmd *cobra.Command) error {
	filter := store.EventFilter{TxID: opts.TxID, Name: opts.Name, Limit: opts.Limit}
	for _, expr := range opts.Where {
		pred, err := queryir.ParsePredicate(expr)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --where", err)
		}
		filter.Where = append(filter.Where, pred)
	}
	if opts.Emitter != "" {
		emitter, err := ir.ParseAddress(opts.Emitter)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --emitter", err)
		}
		filter.Emitter = emitter
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	out := opts.formatter(cmd)

	if opts.Receipts {
		receipts, err := st.Receipts(ctx, filter.Where...)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list receipts", err)
		}
		return out.Success(AuditResult{Receipts: receipts}, func(w io.Writer) {
			if len(receipts) == 0 {
				fmt.Fprintln(w, "No receipts.")
				return
			}
			for _, r := range receipts {
				line := fmt.Sprintf("%6d  %s  %-8s %s -> %s %s", r.Seq, r.TxID, r.Status, r.From, r.To, r.Selector)
				if r.ErrorCode != "" {
					line += "  " + r.ErrorCode
				}
				fmt.Fprintln(w, line)
			}
		})
	}

	events, err := st.Events(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list events", err)
	}
	return out.Success(AuditResult{Events: events}, func(w io.Writer) {
		if len(events) == 0 {
			fmt.Fprintln(w, "No events.")
			return
		}
		for _, ev := range events {
			fields, err := ir.MarshalCanonical(ev.Fields)
			if err != nil {
				fields = []byte("{}")
			}
			fmt.Fprintf(w, "%6d  %s  %-28s %s %s\n", ev.Seq, ev.TxID, ev.Name, ev.Emitter, fields)
		}
	})
}
