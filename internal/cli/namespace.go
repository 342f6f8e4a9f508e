package cli

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/exproxy/internal/storage"
)

// NamespaceInfo is the storage prefix derived from a namespace id.
type NamespaceInfo struct {
	ID     string `json:"id"`
	Prefix string `json:"prefix"`
	Base   string `json:"base"`
}

// NewNamespaceCommand creates the namespace command.
func NewNamespaceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "namespace <id>...",
		Short: "Print the storage prefix of namespace ids",
		Long: `Print the 16-byte slot prefix and base slot a namespace id maps to.
Every feature keeps its state under its own prefix inside the Dispatcher.

Example:
  exproxy namespace exproxy.ownable exproxy.transform-erc20`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := make([]NamespaceInfo, len(args))
			for i, id := range args {
				ns := storage.NamespaceFor(id)
				prefix := ns.Prefix()
				infos[i] = NamespaceInfo{
					ID:     id,
					Prefix: "0x" + hex.EncodeToString(prefix[:]),
					Base:   ns.Base().Hex(),
				}
			}
			return rootOpts.formatter(cmd).Success(infos, func(w io.Writer) {
				for _, info := range infos {
					fmt.Fprintf(w, "%s  %s\n", info.Prefix, info.ID)
				}
			})
		},
	}
}
