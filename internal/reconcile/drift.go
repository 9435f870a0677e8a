package reconcile

import (
	"context"

	"grimm.is/aliasync/internal/alias"
	"grimm.is/aliasync/internal/errors"
	"grimm.is/aliasync/internal/logging"
)

// DriftReport lists remote aliases that are not declared, in the order the
// appliance returned them.
type DriftReport struct {
	Names []string
}

// Len returns the number of orphaned aliases.
func (r DriftReport) Len() int { return len(r.Names) }

// Empty reports whether nothing drifted.
func (r DriftReport) Empty() bool { return len(r.Names) == 0 }

// DriftDetector compares remote alias names against the declared set.
// It only reads.
type DriftDetector struct {
	store  Store
	logger *logging.Logger
}

// NewDriftDetector creates a drift detector.
func NewDriftDetector(store Store, logger *logging.Logger) *DriftDetector {
	if logger == nil {
		logger = logging.WithComponent("drift")
	}
	return &DriftDetector{store: store, logger: logger}
}

// Detect lists every remote alias whose name is not in declared. When the
// remote listing cannot be fetched the report is empty and the error is
// returned alongside it for logging.
func (d *DriftDetector) Detect(ctx context.Context, declared alias.NameSet) (DriftReport, error) {
	records, err := d.store.Search(ctx)
	if err != nil {
		return DriftReport{}, errors.Wrap(err, "drift detection")
	}
	report := Diff(records, declared)
	for _, name := range report.Names {
		d.logger.Warn("alias not declared", "alias", name)
	}
	return report, nil
}

// Diff computes remote minus declared over records without any I/O.
func Diff(records []alias.Record, declared alias.NameSet) DriftReport {
	var report DriftReport
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if declared.Has(rec.Name) || seen[rec.Name] {
			continue
		}
		seen[rec.Name] = true
		report.Names = append(report.Names, rec.Name)
	}
	return report
}
