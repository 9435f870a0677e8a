package reconcile

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/aliasync/internal/alias"
)

// Change classifies a declared alias against a snapshot.
type Change string

const (
	ChangeCreate    Change = "create"
	ChangeUpdate    Change = "update"
	ChangeUnchanged Change = "unchanged"
)

// PlanEntry is the predicted effect of a run on one declared alias.
type PlanEntry struct {
	Name    string
	Change  Change
	Current *alias.Record
	Desired alias.Spec
}

// Plan previews a run from a snapshot of the remote store. It is
// informational: the run still issues an update for every present alias.
type Plan struct {
	Entries []PlanEntry
	Drift   DriftReport
}

// BuildPlan classifies every declared alias against records and predicts drift.
func BuildPlan(records []alias.Record, set *alias.Set) *Plan {
	byName := make(map[string]*alias.Record, len(records))
	for i := range records {
		if _, dup := byName[records[i].Name]; !dup {
			byName[records[i].Name] = &records[i]
		}
	}

	p := &Plan{Drift: Diff(records, set.Names())}
	for _, spec := range set.Specs() {
		entry := PlanEntry{Name: spec.Name, Desired: spec, Change: ChangeCreate}
		if rec, ok := byName[spec.Name]; ok {
			entry.Current = rec
			entry.Change = ChangeUpdate
			if rec.Matches(spec) {
				entry.Change = ChangeUnchanged
			}
		}
		p.Entries = append(p.Entries, entry)
	}
	return p
}

// Count returns the number of entries with change c.
func (p *Plan) Count(c Change) int {
	n := 0
	for _, e := range p.Entries {
		if e.Change == c {
			n++
		}
	}
	return n
}

// HasChanges reports whether the run would create or modify anything.
func (p *Plan) HasChanges() bool {
	return p.Count(ChangeCreate)+p.Count(ChangeUpdate) > 0
}

// Diff renders a unified diff of the managed fields for every alias that
// would be created or changed.
func (p *Plan) Diff() string {
	var b strings.Builder
	for _, e := range p.Entries {
		if e.Change == ChangeUnchanged {
			continue
		}
		from := "a/" + e.Name
		var before []string
		if e.Current != nil {
			before = recordLines(e.Current)
		} else {
			from = "/dev/null"
		}
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        before,
			B:        specLines(e.Desired),
			FromFile: from,
			ToFile:   "b/" + e.Name,
			Context:  3,
		})
		if err != nil {
			fmt.Fprintf(&b, "%s: %v\n", e.Name, err)
			continue
		}
		b.WriteString(text)
	}
	return b.String()
}

// Summary is a one-line description of the plan.
func (p *Plan) Summary() string {
	return fmt.Sprintf("%d to create, %d to update, %d unchanged, %d not declared",
		p.Count(ChangeCreate), p.Count(ChangeUpdate), p.Count(ChangeUnchanged), p.Drift.Len())
}

func specLines(s alias.Spec) []string {
	return managedLines(s.Name, s.Payload().Enabled, alias.TypePort, s.Content(), s.Description)
}

func recordLines(r *alias.Record) []string {
	enabled := "0"
	if r.Enabled {
		enabled = "1"
	}
	return managedLines(r.Name, enabled, r.Type, strings.Join(r.Ports(), ","), r.Description)
}

func managedLines(name, enabled, typ, content, description string) []string {
	return []string{
		"name: " + name + "\n",
		"enabled: " + enabled + "\n",
		"type: " + typ + "\n",
		"content: " + content + "\n",
		"description: " + description + "\n",
	}
}
