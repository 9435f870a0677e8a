package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/aliasync/internal/errors"
	"grimm.is/aliasync/internal/reconcile"
	fake "grimm.is/aliasync/internal/testutil"
)

type fixture struct {
	appliance *fake.FakeAppliance
	dir       string
	global    *globalOptions
	stdout    bytes.Buffer
	stderr    bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{appliance: fake.NewFakeAppliance(t), dir: t.TempDir()}
	f.appliance.Seed(
		map[string]any{"name": "web", "type": "port", "content": "80", "description": "old", "enabled": "1", "categories": "dmz"},
		map[string]any{"name": "Orphan1", "type": "port", "content": "9999", "enabled": "1"},
	)

	config := fmt.Sprintf(`
appliance {
  url        = %q
  api_key    = %q
  api_secret = %q
}

backup {
  dir = "backups"
}

audit_db     = "audit.db"
metrics_file = "aliasync.prom"

alias "web" {
  ports       = [80, 443]
  description = "Web"
}

alias "dns" {
  ports = [53]
}
`, f.appliance.URL(), f.appliance.Key, f.appliance.Secret)

	path := filepath.Join(f.dir, "aliasync.hcl")
	require.NoError(t, os.WriteFile(path, []byte(config), 0600))
	f.global = &globalOptions{configFile: path, logLevel: "error"}
	return f
}

func (f *fixture) apply(t *testing.T, opts applyOptions) (*reconcile.Summary, error) {
	t.Helper()
	return RunApply(context.Background(), f.global, opts, &f.stdout, &f.stderr)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitFailure, ExitCode(errors.Mark(errors.New("backup"), reconcile.ErrPrecondition)))
	assert.Equal(t, ExitCancelled, ExitCode(errors.Mark(errors.New("declined"), reconcile.ErrCancelled)))
	assert.Equal(t, ExitCancelled, ExitCode(errors.Wrap(errors.Mark(errors.New("declined"), reconcile.ErrCancelled), "approval")))
}

func TestRunApply(t *testing.T) {
	f := newFixture(t)

	sum, err := f.apply(t, applyOptions{yes: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"dns"}, sum.Created())
	assert.Equal(t, []string{"web"}, sum.Updated())
	assert.Equal(t, []string{"Orphan1"}, sum.Drift.Names)
	assert.Equal(t, 1, f.appliance.Reloads())

	web, ok := f.appliance.Row("web")
	require.True(t, ok)
	assert.Equal(t, "80,443", web["content"])
	assert.Equal(t, "dmz", web["categories"])

	_, ok = f.appliance.Row("Orphan1")
	assert.True(t, ok, "undeclared aliases are never touched")

	out := f.stdout.String()
	assert.Contains(t, out, "created 1, updated 1, failed 0")
	assert.Contains(t, out, "drift: Orphan1")

	backups, err := os.ReadDir(filepath.Join(f.dir, "backups"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	prom, err := os.ReadFile(filepath.Join(f.dir, "aliasync.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "aliasync_alias_operations_total")

	var history bytes.Buffer
	require.NoError(t, RunHistory(f.global, historyOptions{runID: sum.RunID, limit: 10}, &history, &f.stderr))
	assert.Contains(t, history.String(), "alias.create")
	assert.Contains(t, history.String(), "alias.update")
	assert.Contains(t, history.String(), "alias.reload")
}

func TestRunApply_Declined(t *testing.T) {
	f := newFixture(t)

	_, err := f.apply(t, applyOptions{approver: reconcile.Decline})
	require.Error(t, err)
	assert.Equal(t, ExitCancelled, ExitCode(err))
	assert.Zero(t, f.appliance.Mutations())
	assert.Zero(t, f.appliance.Reloads())

	backups, err := os.ReadDir(filepath.Join(f.dir, "backups"))
	require.NoError(t, err)
	assert.Len(t, backups, 1, "the backup precedes the gate")
}

func TestRunApply_NonInteractiveWithoutYes(t *testing.T) {
	t.Setenv("NO_INTERACTION", "1")
	f := newFixture(t)

	_, err := f.apply(t, applyOptions{})
	require.Error(t, err)
	assert.Equal(t, ExitCancelled, ExitCode(err))
	assert.Zero(t, f.appliance.Mutations())
	assert.Contains(t, errors.FlattenHints(err), "--yes")
	assert.Contains(t, f.stderr.String(), "1 to create, 1 to update")
}

func TestRunApply_BackupFailure(t *testing.T) {
	f := newFixture(t)
	f.appliance.FailSearch = 500

	_, err := f.apply(t, applyOptions{yes: true})
	require.Error(t, err)
	assert.True(t, reconcile.IsPrecondition(err))
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Zero(t, f.appliance.Mutations())
}

func TestRunApply_PerAliasFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.appliance.FailCreate["dns"] = "failed"

	sum, err := f.apply(t, applyOptions{yes: true})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, ExitCode(err))
	require.Len(t, sum.Failed(), 1)
	assert.Equal(t, "dns", sum.Failed()[0].Name)
	assert.Equal(t, 1, f.appliance.Reloads())
	assert.Contains(t, f.stdout.String(), "1 of 2 aliases could not be reconciled")
}

func TestRunPlan(t *testing.T) {
	f := newFixture(t)

	plan, err := RunPlan(context.Background(), f.global, &f.stdout, &f.stderr)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Count(reconcile.ChangeCreate))
	assert.Equal(t, 1, plan.Count(reconcile.ChangeUpdate))
	assert.Contains(t, f.stdout.String(), "+content: 80,443")
	assert.Zero(t, f.appliance.Mutations())

	_, err = os.Stat(filepath.Join(f.dir, "backups"))
	assert.True(t, os.IsNotExist(err), "plan takes no backup")
}

func TestRunDrift(t *testing.T) {
	f := newFixture(t)

	report, err := RunDrift(context.Background(), f.global, &f.stdout, &f.stderr)
	require.NoError(t, err)
	assert.Equal(t, []string{"Orphan1"}, report.Names)
	assert.Contains(t, f.stdout.String(), "Orphan1")

	f.appliance.FailSearch = 503
	_, err = RunDrift(context.Background(), f.global, &f.stdout, &f.stderr)
	assert.Error(t, err)
}

func TestRunValidate(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, RunValidate(f.global.configFile, &f.stdout))
	assert.Contains(t, f.stdout.String(), "Configuration valid!")
	assert.Contains(t, f.stdout.String(), "Aliases: 2")

	bad := filepath.Join(f.dir, "bad.hcl")
	require.NoError(t, os.WriteFile(bad, []byte("appliance {"), 0600))
	err := RunValidate(bad, &f.stdout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration invalid")
}

func TestRunBackups(t *testing.T) {
	f := newFixture(t)

	var out bytes.Buffer
	require.NoError(t, RunBackups(f.global, &out, &f.stderr))
	assert.Contains(t, out.String(), "no backups")

	_, err := f.apply(t, applyOptions{yes: true})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, RunBackups(f.global, &out, &f.stderr))
	assert.Contains(t, out.String(), "aliases-")
}

func TestRootCommand(t *testing.T) {
	f := newFixture(t)

	root := NewRootCmd()
	root.SetArgs([]string{"--config", f.global.configFile, "--log-level", "error", "--yes"})
	root.SetOut(&f.stdout)
	root.SetErr(&f.stderr)
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Equal(t, 1, f.appliance.Reloads())
	assert.Contains(t, f.stdout.String(), "created 1, updated 1")
}

func TestRootCommand_Validate(t *testing.T) {
	f := newFixture(t)

	root := NewRootCmd()
	root.SetArgs([]string{"validate", "-c", f.global.configFile})
	root.SetOut(&f.stdout)
	require.NoError(t, root.Execute())
	assert.Contains(t, f.stdout.String(), "Configuration valid!")
	assert.Zero(t, len(f.appliance.Calls()))
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	err := errors.WithHint(errors.Mark(errors.New("declined by approver"), reconcile.ErrCancelled), "nothing was changed")
	printError(&buf, err)
	assert.Contains(t, buf.String(), "Cancelled: declined by approver")
	assert.Contains(t, buf.String(), "hint: nothing was changed")
}
