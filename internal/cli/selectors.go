package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/exproxy/internal/deploy"
)

// FunctionInfo describes one entry of a code kind's interface.
type FunctionInfo struct {
	Selector  string `json:"selector"`
	Signature string `json:"signature"`
	Payable   bool   `json:"payable,omitempty"`
	View      bool   `json:"view,omitempty"`
}

// KindInfo is the interface of one code kind.
type KindInfo struct {
	Kind      string         `json:"kind"`
	Functions []FunctionInfo `json:"functions"`
}

// NewSelectorsCommand creates the selectors command.
func NewSelectorsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "selectors [kind...]",
		Short: "Print the function interface of code kinds",
		Long: `Print the selector and canonical signature of every function a code
kind exposes, sorted by signature. Without arguments every registered kind
is listed.

Examples:
  exproxy selectors
  exproxy selectors exproxy.feature.registry --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelectors(rootOpts, args, cmd)
		},
	}
}

func runSelectors(opts *RootOptions, kinds []string, cmd *cobra.Command) error {
	book, err := deploy.NewCodebook()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build codebook", err)
	}
	if len(kinds) == 0 {
		kinds = book.Kinds()
	}

	infos := make([]KindInfo, 0, len(kinds))
	for _, kind := range kinds {
		sigs, err := book.Interface(kind)
		if err != nil {
			return WrapExitError(ExitCommandError, "unknown kind", err)
		}
		info := KindInfo{Kind: kind, Functions: make([]FunctionInfo, 0, len(sigs))}
		for _, sig := range sigs {
			info.Functions = append(info.Functions, FunctionInfo{
				Selector:  sig.Selector().Hex(),
				Signature: sig.Signature(),
				Payable:   sig.Payable,
				View:      sig.View,
			})
		}
		infos = append(infos, info)
	}

	return opts.formatter(cmd).Success(infos, func(w io.Writer) {
		for i, info := range infos {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, info.Kind)
			for _, fn := range info.Functions {
				var tag string
				switch {
				case fn.Payable:
					tag = " payable"
				case fn.View:
					tag = " view"
				}
				fmt.Fprintf(w, "  %s  %s%s\n", fn.Selector, fn.Signature, tag)
			}
		}
	})
}
