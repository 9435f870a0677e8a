package reconcile

import (
	"context"

	"grimm.is/aliasync/internal/alias"
	"grimm.is/aliasync/internal/errors"
	"grimm.is/aliasync/internal/logging"
)

// Action is the outcome kind of reconciling one alias.
type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
	Failed  Action = "failed"
)

// Outcome is the result of reconciling one declared alias.
type Outcome struct {
	Name   string
	Action Action
	// Attempted is the mutation that was tried ("create" or "update"). It is
	// empty when the lookup failed and nothing was sent.
	Attempted string
	Reason    string
	Err       error
}

// OK reports whether the alias now matches its declaration.
func (o Outcome) OK() bool { return o.Action != Failed }

// Reconciler makes one remote alias match its declaration.
type Reconciler struct {
	store  Store
	logger *logging.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(store Store, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.WithComponent("reconcile")
	}
	return &Reconciler{store: store, logger: logger}
}

// Reconcile creates spec when the appliance confirms it is absent, or
// updates its managed fields when it exists. A lookup that fails for any
// other reason is reported as Failed; it never falls through to a create.
func (r *Reconciler) Reconcile(ctx context.Context, spec alias.Spec) Outcome {
	log := r.logger.WithFields(map[string]any{"alias": spec.Name})

	_, err := r.store.Get(ctx, spec.Name)
	switch {
	case errors.Is(err, alias.ErrNotFound):
		return r.create(ctx, log, spec)
	case err != nil:
		log.Error("lookup failed", "error", err)
		return Outcome{Name: spec.Name, Action: Failed, Reason: "lookup failed: " + err.Error(), Err: err}
	default:
		return r.update(ctx, log, spec)
	}
}

func (r *Reconciler) create(ctx context.Context, log *logging.Logger, spec alias.Spec) Outcome {
	res, err := r.store.Create(ctx, spec)
	if err != nil {
		log.Error("create failed", "error", err)
		return Outcome{Name: spec.Name, Action: Failed, Attempted: "create", Reason: err.Error(), Err: err}
	}
	if !res.OK() {
		reason := res.Reason()
		log.Error("create rejected", "reason", reason)
		return Outcome{Name: spec.Name, Action: Failed, Attempted: "create", Reason: reason}
	}
	log.Info("alias created", "content", spec.Content())
	return Outcome{Name: spec.Name, Action: Created, Attempted: "create"}
}

func (r *Reconciler) update(ctx context.Context, log *logging.Logger, spec alias.Spec) Outcome {
	res, err := r.store.Update(ctx, spec.Name, spec)
	if err != nil {
		log.Error("update failed", "error", err)
		return Outcome{Name: spec.Name, Action: Failed, Attempted: "update", Reason: err.Error(), Err: err}
	}
	if !res.OK() {
		reason := res.Reason()
		log.Error("update rejected", "reason", reason)
		return Outcome{Name: spec.Name, Action: Failed, Attempted: "update", Reason: reason}
	}
	log.Info("alias updated", "content", spec.Content())
	return Outcome{Name: spec.Name, Action: Updated, Attempted: "update"}
}
