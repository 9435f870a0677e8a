package tui

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"

	"grimm.is/aliasync/internal/backup"
	"grimm.is/aliasync/internal/errors"
	"grimm.is/aliasync/internal/reconcile"
)

// ErrNoInteraction is returned when approval is needed but nobody can answer.
var ErrNoInteraction = errors.New("approval required but the session is not interactive")

// Confirm is the interactive approval gate. It shows the plan and asks
// whether to apply it.
type Confirm struct {
	Out io.Writer

	// Interactive overrides terminal detection.
	Interactive func() bool
	// Ask overrides the prompt.
	Ask func(ctx context.Context, title, description string) (bool, error)
}

// NewConfirm returns a Confirm writing to stderr.
func NewConfirm() *Confirm {
	return &Confirm{Out: os.Stderr, Interactive: IsInteractive, Ask: askHuh}
}

// Approve renders the plan and prompts. A session that cannot prompt declines
// with ErrNoInteraction.
func (c *Confirm) Approve(ctx context.Context, art *backup.Artifact, plan *reconcile.Plan) (bool, error) {
	fmt.Fprintln(c.Out, RenderPlan(plan))

	interactive := c.Interactive
	if interactive == nil {
		interactive = IsInteractive
	}
	if !interactive() {
		return false, errors.WithHint(ErrNoInteraction, "pass --yes to apply without confirmation")
	}

	ask := c.Ask
	if ask == nil {
		ask = askHuh
	}
	desc := fmt.Sprintf("Backup %s holds %d aliases.", art.Name, art.Count)
	return ask(ctx, "Apply these changes to the appliance?", desc)
}

func askHuh(ctx context.Context, title, description string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Apply").
				Negative("Abort").
				Value(&ok),
		),
	).WithTheme(huh.ThemeBase16()).WithOutput(os.Stderr)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, errors.Wrap(err, "approval prompt")
	}
	return ok, nil
}
