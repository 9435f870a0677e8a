package reconcile

import (
	"context"

	"grimm.is/aliasync/internal/backup"
)

// Approver decides whether a run may start mutating the appliance. It sees
// the backup that was just taken and the plan derived from it. Returning
// false, or an error, aborts the run with nothing changed.
type Approver interface {
	Approve(ctx context.Context, art *backup.Artifact, plan *Plan) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, art *backup.Artifact, plan *Plan) (bool, error)

// Approve calls f.
func (f ApproverFunc) Approve(ctx context.Context, art *backup.Artifact, plan *Plan) (bool, error) {
	return f(ctx, art, plan)
}

// AutoApprove accepts every run.
var AutoApprove Approver = ApproverFunc(func(context.Context, *backup.Artifact, *Plan) (bool, error) {
	return true, nil
})

// Decline rejects every run.
var Decline Approver = ApproverFunc(func(context.Context, *backup.Artifact, *Plan) (bool, error) {
	return false, nil
})
