package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	From  string
	To    string
	Value int64
	Args  string
	View  bool
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <function>",
		Short: "Submit one external call",
		Long: `Submit one external call and print its receipt.

The function is a name known to the codebook, or a full signature such as
"migrate(address,tuple)" when several signatures share a name. Arguments are
a JSON object; integers must be whole numbers.

A reverted call prints its receipt and exits with code 1.

Examples:
  exproxy call owner --to 0x... --view
  exproxy call transferOwnership --from 0x... --to 0x... --args '{"newOwner":"0x..."}'
  exproxy call transformERC20 --from 0x... --to 0x... --value 40 --args @pipeline.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "caller address")
	cmd.Flags().StringVar(&opts.To, "to", "", "target address (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().Int64Var(&opts.Value, "value", 0, "native value attached to the call")
	cmd.Flags().StringVar(&opts.Args, "args", "{}", "call arguments as a JSON object")
	cmd.Flags().BoolVar(&opts.View, "view", false, "read-only call; nothing persists")

	return cmd
}

func runCall(opts *CallOptions, function string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	msg, err := opts.message()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid call", err)
	}

	h, st, err := opts.openHost(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	var sig string
	msg.Selector, sig, err = h.Codebook().ResolveFunction(function)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid call", err)
	}
	out.VerboseLog("calling %s (%s) on %s", sig, msg.Selector, msg.To)

	if opts.View {
		result, err := h.View(cmd.Context(), msg)
		if err != nil {
			_ = out.Error(codeOf(err), err.Error(), nil)
			return WrapExitError(ExitFailure, "view reverted", err)
		}
		return out.Success(result, func(w io.Writer) { printObject(w, result) })
	}

	receipt, err := h.Call(cmd.Context(), msg)
	if err != nil {
		return WrapExitError(ExitCommandError, "call aborted", err)
	}
	if err := out.Success(receipt, func(w io.Writer) { printReceipt(w, sig, receipt) }); err != nil {
		return err
	}
	if receipt.Status != ir.StatusSuccess {
		return NewExitError(ExitFailure, fmt.Sprintf("%s reverted: %s", sig, receipt.ErrorCode))
	}
	return nil
}

func codeOf(err error) string {
	return string(revert.CodeOf(err))
}

// message parses the address and argument flags.
func (o *CallOptions) message() (ir.Msg, error) {
	var msg ir.Msg
	var err error
	if o.From != "" {
		if msg.From, err = ir.ParseAddress(o.From); err != nil {
			return msg, fmt.Errorf("--from: %w", err)
		}
	}
	if msg.To, err = ir.ParseAddress(o.To); err != nil {
		return msg, fmt.Errorf("--to: %w", err)
	}
	if o.Value < 0 {
		return msg, fmt.Errorf("--value must be non-negative")
	}
	msg.Value = o.Value
	src := o.Args
	if path, ok := strings.CutPrefix(src, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return msg, fmt.Errorf("--args: %w", err)
		}
		src = string(data)
	}
	if msg.Args, err = parseArgs(src); err != nil {
		return msg, fmt.Errorf("--args: %w", err)
	}
	return msg, nil
}

// parseArgs decodes a JSON object, keeping numbers exact.
func parseArgs(s string) (ir.Object, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return ir.Object{}, nil
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, err
	}
	return v.(ir.Object), nil
}

func printReceipt(w io.Writer, sig string, r *ir.Receipt) {
	fmt.Fprintf(w, "%s %s\n", r.Status, sig)
	fmt.Fprintf(w, "  tx:   %s (seq %d)\n", r.TxID, r.Seq)
	fmt.Fprintf(w, "  from: %s\n", r.From)
	fmt.Fprintf(w, "  to:   %s\n", r.To)
	if r.Status != ir.StatusSuccess {
		fmt.Fprintf(w, "  error: %s: %s\n", r.ErrorCode, r.ErrorMessage)
		return
	}
	if len(r.Result) > 0 {
		fmt.Fprintln(w, "  result:")
		printObjectIndent(w, r.Result, "    ")
	}
	for _, ev := range r.Events {
		fields, _ := ir.MarshalCanonical(ev.Fields)
		fmt.Fprintf(w, "  event %s from %s %s\n", ev.Name, ev.Emitter, fields)
	}
}

func printObject(w io.Writer, obj ir.Object) {
	printObjectIndent(w, obj, "")
}

func printObjectIndent(w io.Writer, obj ir.Object, indent string) {
	for _, k := range obj.SortedKeys() {
		data, err := ir.MarshalCanonical(obj[k])
		if err != nil {
			data = []byte("null")
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, k, data)
	}
}
