package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/aliasync/internal/alias"
)

func TestBuildPlan(t *testing.T) {
	set, err := alias.NewSet(
		alias.Spec{Name: "web", Ports: []string{"80", "443"}, Description: "Web", Enabled: true},
		alias.Spec{Name: "ssh", Ports: []string{"22"}, Description: "SSH", Enabled: true},
		alias.Spec{Name: "dns", Ports: []string{"53"}, Enabled: true},
	)
	require.NoError(t, err)

	remote := []alias.Record{
		{Name: "ssh", Type: "port", Content: "22", Description: "SSH", Enabled: true, Color: "ff0000"},
		{Name: "web", Type: "port", Content: "80", Description: "Web", Enabled: true},
		{Name: "legacy", Type: "host", Content: "10.0.0.1"},
	}

	plan := BuildPlan(remote, set)
	require.Len(t, plan.Entries, 3)

	assert.Equal(t, "web", plan.Entries[0].Name, "declaration order is kept")
	assert.Equal(t, ChangeUpdate, plan.Entries[0].Change)
	assert.Equal(t, ChangeUnchanged, plan.Entries[1].Change)
	assert.Equal(t, ChangeCreate, plan.Entries[2].Change)
	assert.Nil(t, plan.Entries[2].Current)

	assert.Equal(t, []string{"legacy"}, plan.Drift.Names)
	assert.True(t, plan.HasChanges())
	assert.Equal(t, "1 to create, 1 to update, 1 unchanged, 1 not declared", plan.Summary())
}

func TestPlanDiff(t *testing.T) {
	set, err := alias.NewSet(
		alias.Spec{Name: "web", Ports: []string{"80", "443"}, Description: "Web", Enabled: true},
		alias.Spec{Name: "dns", Ports: []string{"53"}, Enabled: true},
		alias.Spec{Name: "ssh", Ports: []string{"22"}, Enabled: true},
	)
	require.NoError(t, err)

	plan := BuildPlan([]alias.Record{
		{Name: "web", Type: "port", Content: "80", Description: "Web", Enabled: true},
		{Name: "ssh", Type: "port", Content: "22", Enabled: true},
	}, set)

	diff := plan.Diff()
	assert.Contains(t, diff, "--- a/web")
	assert.Contains(t, diff, "-content: 80\n")
	assert.Contains(t, diff, "+content: 80,443\n")
	assert.Contains(t, diff, "--- /dev/null")
	assert.Contains(t, diff, "+name: dns\n")
	assert.NotContains(t, diff, "a/ssh", "unchanged aliases are not rendered")
}

func TestPlanNoChanges(t *testing.T) {
	set, err := alias.NewSet(alias.Spec{Name: "ssh", Ports: []string{"22"}, Enabled: true})
	require.NoError(t, err)

	plan := BuildPlan([]alias.Record{{Name: "ssh", Type: "port", Content: "22", Enabled: true}}, set)
	assert.False(t, plan.HasChanges())
	assert.Empty(t, plan.Diff())
}
