package cli

import (
	"context"

	"github.com/roach88/exproxy/internal/deploy"
	"github.com/roach88/exproxy/internal/host"
	"github.com/roach88/exproxy/internal/store"
)

// openHost opens the configured database and a host running the standard
// codebook. The caller closes the returned store.
func (o *RootOptions) openHost(ctx context.Context) (*host.Host, *store.Store, error) {
	st, err := store.Open(o.Config.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	book, err := deploy.NewCodebook()
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to build codebook", err)
	}
	h, err := host.New(ctx, st, book, o.Config.HostOptions(o.Logger)...)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to start host", err)
	}
	return h, st, nil
}

// openStore opens the configured database for reading.
func (o *RootOptions) openStore() (*store.Store, error) {
	st, err := store.Open(o.Config.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
