package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/exproxy/internal/deploy"
	"github.com/roach88/exproxy/internal/manifest"
)

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy <manifest>",
		Short: "Deploy and bootstrap a Dispatcher from a CUE manifest",
		Long: `Deploy a Dispatcher, its features, tokens and transformers as the
manifest describes, then bootstrap it with the configured migration.

The manifest is a .cue file or a directory holding one CUE package with a
top-level "deployment" value.

Examples:
  exproxy deploy --db ./exproxy.db ./deployment.cue
  exproxy deploy --db ./exproxy.db ./manifests/standard --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(rootOpts, args[0], cmd)
		},
	}
}

func runDeploy(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	m, err := manifest.Load(path)
	if err != nil {
		var merr *manifest.Error
		if errors.As(err, &merr) {
			_ = out.Error("E_MANIFEST", merr.Error(), map[string]string{"field": merr.Field})
			return WrapExitError(ExitCommandError, "invalid manifest", err)
		}
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}

	h, st, err := opts.openHost(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	d, err := deploy.Run(cmd.Context(), h, m, opts.Logger)
	if err != nil {
		var rerr *deploy.ReceiptError
		if errors.As(err, &rerr) {
			_ = out.Error(rerr.Receipt.ErrorCode, rerr.Error(), map[string]string{
				"step": rerr.Step,
				"tx":   rerr.Receipt.TxID,
			})
			return WrapExitError(ExitFailure, "deployment reverted", err)
		}
		return WrapExitError(ExitCommandError, "deployment failed", err)
	}

	return out.Success(d, func(w io.Writer) { printDeployment(w, d) })
}

func printDeployment(w io.Writer, d *deploy.Deployment) {
	row := func(label, value string) { fmt.Fprintf(w, "%-18s %s\n", label, value) }

	row("dispatcher", d.Dispatcher.Hex())
	row("migrator", d.Migrator.Hex())
	row("registry", d.Registry.Hex())
	row("ownable", d.Ownable.Hex())
	if !d.TokenSpender.IsZero() {
		row("tokenSpender", d.TokenSpender.Hex())
		row("transformERC20", d.TransformERC20.Hex())
		row("allowanceTarget", d.AllowanceTarget.Hex())
	}

	labels := make([]string, 0, len(d.Tokens))
	for label := range d.Tokens {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		row("token "+label, d.Tokens[label].Hex())
	}
	for _, t := range d.Transformers {
		row("transformer "+t.Name, fmt.Sprintf("%s (nonce %d)", t.Address.Hex(), t.Nonce))
	}
	row("bootstrap tx", d.Receipt.TxID)
}
