// Package reconcile implements the reconciliation engine: drift detection,
// per-alias create-or-update, and the orchestrated run that wraps them in
// the backup and approval protocol.
package reconcile

import (
	"context"

	"grimm.is/aliasync/internal/alias"
)

// Store is the remote alias store. *client.HTTPClient implements it.
//
// Get must return alias.ErrNotFound only for a confirmed absence; any other
// error leaves the alias state unknown.
type Store interface {
	Search(ctx context.Context) ([]alias.Record, error)
	Get(ctx context.Context, name string) (*alias.Record, error)
	Create(ctx context.Context, spec alias.Spec) (*alias.Result, error)
	Update(ctx context.Context, name string, spec alias.Spec) (*alias.Result, error)
	Reload(ctx context.Context) (*alias.Result, error)
}
