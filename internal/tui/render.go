package tui

import (
	"fmt"
	"strings"
	"time"

	"grimm.is/aliasync/internal/audit"
	"grimm.is/aliasync/internal/backup"
	"grimm.is/aliasync/internal/reconcile"
)

// RenderPlan shows the predicted changes and a coloured diff.
func RenderPlan(plan *reconcile.Plan) string {
	var b strings.Builder
	b.WriteString(StyleHeader.Render("Plan") + "\n")
	b.WriteString(plan.Summary() + "\n")

	if diff := plan.Diff(); diff != "" {
		b.WriteString("\n" + ColorDiff(diff))
	}
	if !plan.Drift.Empty() {
		b.WriteString("\n" + WarnMsg("not declared (left untouched): %s", strings.Join(plan.Drift.Names, ", ")) + "\n")
	}
	return b.String()
}

// ColorDiff styles a unified diff line by line.
func ColorDiff(diff string) string {
	lines := strings.SplitAfter(diff, "\n")
	var b strings.Builder
	for _, line := range lines {
		text := strings.TrimSuffix(line, "\n")
		nl := len(text) != len(line)
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"):
			text = StyleTitle.Render(text)
		case strings.HasPrefix(text, "@@"):
			text = StyleDiffHunk.Render(text)
		case strings.HasPrefix(text, "+"):
			text = StyleDiffAdd.Render(text)
		case strings.HasPrefix(text, "-"):
			text = StyleDiffRemove.Render(text)
		}
		b.WriteString(text)
		if nl {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderSummary is the end-of-run report: created, updated, failed, drifted.
func RenderSummary(sum *reconcile.Summary) string {
	var b strings.Builder
	b.WriteString(StyleHeader.Render("Run "+sum.RunID) + "\n")

	if sum.Backup != nil {
		b.WriteString(InfoMsg("backup %s (%d aliases)", sum.Backup.Name, sum.Backup.Count) + "\n")
	}

	rows := make([][]string, 0, len(sum.Outcomes))
	for _, o := range sum.Outcomes {
		status := StyleGood.Render(string(o.Action))
		if o.Action == reconcile.Failed {
			status = StyleBad.Render(string(o.Action))
		}
		rows = append(rows, []string{o.Name, status, o.Reason})
	}
	if len(rows) > 0 {
		b.WriteString(Table([]string{"Alias", "Result", "Reason"}, rows) + "\n")
	}

	b.WriteString(fmt.Sprintf("created %d, updated %d, failed %d\n",
		len(sum.Created()), len(sum.Updated()), len(sum.Failed())))

	switch {
	case sum.DriftErr != nil:
		b.WriteString(WarnMsg("drift detection failed: %v", sum.DriftErr) + "\n")
	case sum.Drift.Empty():
		b.WriteString(SuccessMsg("no drift") + "\n")
	default:
		b.WriteString(WarnMsg("drift: %s", strings.Join(sum.Drift.Names, ", ")) + "\n")
	}

	if sum.Stage == reconcile.StageDone {
		if sum.ReloadErr != nil {
			b.WriteString(ErrorMsg("reload failed: %v", sum.ReloadErr) + "\n")
		} else {
			b.WriteString(SuccessMsg("reload acknowledged") + "\n")
		}
	}
	b.WriteString(StyleMuted.Render("took "+sum.Duration.Round(time.Millisecond).String()) + "\n")
	return b.String()
}

// RenderDrift lists orphaned aliases.
func RenderDrift(report reconcile.DriftReport) string {
	if report.Empty() {
		return SuccessMsg("no drift") + "\n"
	}
	rows := make([][]string, 0, report.Len())
	for _, n := range report.Names {
		rows = append(rows, []string{n})
	}
	return WarnMsg("%d aliases on the appliance are not declared", report.Len()) + "\n" +
		Table([]string{"Alias"}, rows) + "\n"
}

// RenderBackups lists stored artifacts, newest first.
func RenderBackups(infos []backup.Info) string {
	if len(infos) == 0 {
		return StyleMuted.Render("no backups") + "\n"
	}
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			info.CapturedAt.Local().Format(time.RFC3339),
			fmt.Sprintf("%d", info.Size),
		})
	}
	return Table([]string{"Artifact", "Captured", "Bytes"}, rows) + "\n"
}

// RenderHistory lists audit events.
func RenderHistory(events []audit.Event) string {
	if len(events) == 0 {
		return StyleMuted.Render("no events") + "\n"
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		status := StyleGood.Render(e.Status)
		if e.Status != audit.StatusOK {
			status = StyleBad.Render(e.Status)
		}
		rows = append(rows, []string{
			e.Timestamp.Local().Format(time.RFC3339),
			shortID(e.RunID),
			e.Action,
			e.Resource,
			status,
			e.Reason,
		})
	}
	return Table([]string{"Time", "Run", "Action", "Alias", "Status", "Reason"}, rows) + "\n"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
