package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"grimm.is/aliasync/internal/alias"
	"grimm.is/aliasync/internal/audit"
	"grimm.is/aliasync/internal/backup"
	"grimm.is/aliasync/internal/clock"
	"grimm.is/aliasync/internal/errors"
	"grimm.is/aliasync/internal/logging"
	"grimm.is/aliasync/internal/metrics"
)

// Stage is a step of a run.
type Stage string

const (
	StageInit        Stage = "init"
	StageBackingUp   Stage = "backing-up"
	StageApproval    Stage = "approval"
	StageDrift       Stage = "drift-detection"
	StageReconciling Stage = "reconciling"
	StageReload      Stage = "reload"
	StageDone        Stage = "done"
	StageAborted     Stage = "aborted"
)

// EventWriter persists mutation events. *audit.Store implements it.
type EventWriter interface {
	Write(evt audit.Event) error
}

// Summary aggregates everything a run did.
type Summary struct {
	RunID    string
	Stage    Stage
	Started  time.Time
	Duration time.Duration

	Backup   *backup.Artifact
	Plan     *Plan
	Outcomes []Outcome

	Drift    DriftReport
	DriftErr error

	Reloaded  bool
	ReloadErr error
}

// Completed reports whether the run went through every stage.
func (s *Summary) Completed() bool { return s.Stage == StageDone }

// Created returns the names of aliases that were created.
func (s *Summary) Created() []string { return s.names(Created) }

// Updated returns the names of aliases that were updated.
func (s *Summary) Updated() []string { return s.names(Updated) }

// Failed returns the outcomes of aliases that could not be reconciled.
func (s *Summary) Failed() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Action == Failed {
			out = append(out, o)
		}
	}
	return out
}

func (s *Summary) names(a Action) []string {
	var out []string
	for _, o := range s.Outcomes {
		if o.Action == a {
			out = append(out, o.Name)
		}
	}
	return out
}

// Options wires an Orchestrator. Store, Backups and Approver are required.
type Options struct {
	Store    Store
	Backups  *backup.Manager
	Approver Approver

	Audit   EventWriter
	Metrics *metrics.Registry
	Clock   clock.Clock
	Logger  *logging.Logger

	// NewRunID overrides run identifier generation.
	NewRunID func() string
}

// Orchestrator runs backup, approval, drift detection, reconciliation of the
// whole declared set, and reload, strictly in that order.
type Orchestrator struct {
	store      Store
	backups    *backup.Manager
	approver   Approver
	detector   *DriftDetector
	reconciler *Reconciler
	audit      EventWriter
	metrics    *metrics.Registry
	clock      clock.Clock
	logger     *logging.Logger
	newRunID   func() string
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	newRunID := opts.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	return &Orchestrator{
		store:      opts.Store,
		backups:    opts.Backups,
		approver:   opts.Approver,
		detector:   NewDriftDetector(opts.Store, logger.WithComponent("drift")),
		reconciler: NewReconciler(opts.Store, logger.WithComponent("reconcile")),
		audit:      opts.Audit,
		metrics:    opts.Metrics,
		clock:      clock.Or(opts.Clock),
		logger:     logger.WithComponent("orchestrator"),
		newRunID:   newRunID,
	}
}

// Run performs one reconciliation run over set.
//
// It returns an error only when the run aborted before any mutation: marked
// ErrPrecondition when the backup failed, ErrCancelled when approval was
// declined or the context ended at the gate. Once mutation starts the whole
// set is processed and per-alias failures are reported in the Summary.
func (o *Orchestrator) Run(ctx context.Context, set *alias.Set) (*Summary, error) {
	sum := &Summary{RunID: o.newRunID(), Stage: StageInit, Started: o.clock.Now()}
	log := o.logger.WithRun(sum.RunID)
	log.Info("run started", "aliases", set.Len())

	enter := func(s Stage) {
		sum.Stage = s
		log.Debug("stage", "stage", string(s))
	}

	enter(StageBackingUp)
	art, err := o.backups.Snapshot(ctx, sum.RunID)
	if err != nil {
		o.abort(sum, log, "backup", err)
		return sum, errors.Mark(errors.Wrap(err, "backup"), ErrPrecondition)
	}
	sum.Backup = art
	sum.Plan = BuildPlan(art.Records, set)
	log.Info("plan", "summary", sum.Plan.Summary(), "backup", art.Name)

	enter(StageApproval)
	approved, err := o.approver.Approve(ctx, art, sum.Plan)
	if err == nil && !approved {
		err = errors.New("declined by approver")
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		o.abort(sum, log, "declined", err)
		return sum, errors.WithHint(
			errors.Mark(errors.Wrap(err, "approval"), ErrCancelled),
			"backup "+art.Name+" was taken; nothing was changed")
	}

	// Past the gate the run is not cancellable.
	mctx := context.WithoutCancel(ctx)

	enter(StageDrift)
	sum.Drift, sum.DriftErr = o.detector.Detect(mctx, set.Names())
	if sum.DriftErr != nil {
		log.Error("drift detection failed, reporting no drift", "error", sum.DriftErr)
	}
	if o.metrics != nil {
		o.metrics.DriftAliases.Set(float64(sum.Drift.Len()))
	}

	enter(StageReconciling)
	for _, spec := range set.Specs() {
		out := o.reconciler.Reconcile(mctx, spec)
		sum.Outcomes = append(sum.Outcomes, out)
		o.record(log, sum.RunID, out, spec)
	}

	enter(StageReload)
	o.reload(mctx, log, sum)

	if infos, err := o.backups.List(); err == nil && o.metrics != nil {
		o.metrics.BackupArtifacts.Set(float64(len(infos)))
	}

	enter(StageDone)
	o.finish(sum)
	log.Info("run finished",
		"created", len(sum.Created()),
		"updated", len(sum.Updated()),
		"failed", len(sum.Failed()),
		"drift", sum.Drift.Len(),
		"reloaded", sum.Reloaded,
		"elapsed", sum.Duration)
	return sum, nil
}

func (o *Orchestrator) abort(sum *Summary, log *logging.Logger, reason string, err error) {
	sum.Stage = StageAborted
	o.finish(sum)
	if o.metrics != nil {
		o.metrics.RunsAborted.WithLabelValues(reason).Inc()
	}
	log.Warn("run aborted before any change", "reason", reason, "error", err)
}

func (o *Orchestrator) finish(sum *Summary) {
	sum.Duration = o.clock.Since(sum.Started)
	if o.metrics != nil {
		o.metrics.RecordRun(o.clock.Now(), sum.Duration)
	}
}

func (o *Orchestrator) reload(ctx context.Context, log *logging.Logger, sum *Summary) {
	res, err := o.store.Reload(ctx)
	if err == nil && !res.OK() {
		err = errors.Newf("reload not acknowledged: %s", res.Reason())
	}

	evt := audit.Event{RunID: sum.RunID, Action: audit.ActionReload, Resource: "appliance", Status: audit.StatusOK}
	if err != nil {
		sum.ReloadErr = err
		evt.Status = audit.StatusFailed
		evt.Reason = err.Error()
		log.Error("reload failed, committed alias changes are kept", "error", err)
	} else {
		sum.Reloaded = true
		log.Info("reload acknowledged")
	}
	o.writeEvent(log, evt)
	if o.metrics != nil {
		o.metrics.RecordReload(sum.Reloaded)
	}
}

// record persists one mutation attempt. Lookup failures sent nothing and are
// only logged.
func (o *Orchestrator) record(log *logging.Logger, runID string, out Outcome, spec alias.Spec) {
	if out.Attempted == "" {
		return
	}
	if o.metrics != nil {
		o.metrics.RecordOperation(out.Attempted, out.OK())
	}

	evt := audit.Event{
		RunID:    runID,
		Action:   audit.ActionUpdate,
		Resource: out.Name,
		Status:   audit.StatusOK,
		Details:  map[string]any{"content": spec.Content(), "enabled": spec.Enabled},
	}
	if out.Attempted == "create" {
		evt.Action = audit.ActionCreate
	}
	if !out.OK() {
		evt.Status = audit.StatusFailed
		evt.Reason = out.Reason
	}
	o.writeEvent(log, evt)
}

func (o *Orchestrator) writeEvent(log *logging.Logger, evt audit.Event) {
	log.Audit(evt.Action, evt.Resource, map[string]any{"status": evt.Status})
	if o.audit == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = o.clock.Now()
	}
	if err := o.audit.Write(evt); err != nil {
		log.Warn("audit write failed", "action", evt.Action, "resource", evt.Resource, "error", err)
	}
}
