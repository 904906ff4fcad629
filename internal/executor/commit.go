// Package executor runs the interactive commit workflow.
package executor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/git"
	"github.com/cexll/evergit/internal/logging"
	"github.com/cexll/evergit/internal/negotiation"
	"github.com/cexll/evergit/internal/prompt"
	"github.com/cexll/evergit/internal/provider"
	"github.com/cexll/evergit/internal/terminal"
	"github.com/cexll/evergit/internal/tracker"
)

// UI is the interactive side of the workflow.
type UI interface {
	negotiation.Reviewer
	SelectFiles(ctx context.Context, files []string) ([]string, error)
	Input(ctx context.Context, question string) (string, error)
}

// Options configures an Executor.
type Options struct {
	Model string

	// Tracker is consulted when the user enters a bug number. Nil disables
	// the bug prompt.
	Tracker tracker.Tracker
	// TrackerLabel names the tracker in prompts, e.g. "Launchpad".
	TrackerLabel string

	// Name and Email override the git identity when set.
	Name  string
	Email string

	Logger *zap.Logger
}

// Executor executes commit runs
type Executor struct {
	provider provider.Provider
	git      git.Gateway
	ui       UI
	printer  *terminal.Printer
	opts     Options
	logger   *zap.Logger
}

// New creates a new executor
func New(p provider.Provider, gw git.Gateway, ui UI, printer *terminal.Printer, opts Options) *Executor {
	return &Executor{
		provider: p,
		git:      gw,
		ui:       ui,
		printer:  printer,
		opts:     opts,
		logger:   logging.OrNop(opts.Logger).Named("executor"),
	}
}

// Commit runs one commit: preflight, staging, enrichment, then negotiation.
// A user abort returns ErrAborted.
func (e *Executor) Commit(ctx context.Context) error {
	// 1. Preflight
	if !e.git.IsRepo(ctx) {
		return git.ErrNotRepository
	}
	changed, err := e.git.HasChanges(ctx)
	if err != nil {
		return err
	}
	if !changed {
		return ErrNoChanges
	}

	// 2. Model check before any side effect
	if err := provider.EnsureModel(ctx, e.provider, e.opts.Model); err != nil {
		return err
	}

	// 3. Stage
	files, err := e.git.ListChangedFiles(ctx)
	if err != nil {
		return err
	}
	selected, err := e.ui.SelectFiles(ctx, files)
	if err != nil {
		return fmt.Errorf("select files: %w", err)
	}
	if err := e.git.Stage(ctx, selected...); err != nil {
		return err
	}
	e.logger.Debug("staged files", zap.Strings("files", selected))

	if branch, err := e.git.CurrentBranch(ctx); err != nil {
		e.printer.Warnf("%v", err)
	} else {
		e.printer.Infof("Current branch: %s", branch)
	}

	diff, err := e.git.StagedDiff(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(diff) == "" {
		return fmt.Errorf("nothing staged to commit: %w", ErrNoChanges)
	}

	identity, err := e.git.Identity(ctx)
	if err != nil {
		return err
	}
	if e.opts.Name != "" {
		identity.Name = e.opts.Name
	}
	if e.opts.Email != "" {
		identity.Email = e.opts.Email
	}

	// 4. Enrich
	in := prompt.Input{Name: identity.Name, Email: identity.Email, Diff: diff}
	if err := e.enrich(ctx, &in); err != nil {
		return err
	}

	// 5. Negotiate
	systemPrompt := prompt.CommitPolicy
	if root, err := e.git.Root(ctx); err == nil {
		if systemPrompt, err = prompt.LoadPolicy(root); err != nil {
			return err
		}
	}

	engine := negotiation.NewEngine(e.provider, e.ui, e.git, e.opts.Model, e.opts.Logger)
	engine.OnDraft = func(attempt int, draft string) {
		e.logger.Debug("draft", zap.Int("attempt", attempt), zap.Int("length", len(draft)))
	}

	session, err := engine.Run(ctx, systemPrompt, prompt.BuildUserPrompt(in))
	if err != nil {
		return err
	}
	if session.State != negotiation.Committed {
		e.printer.Warnf("Commit aborted.")
		return ErrAborted
	}
	e.printer.Successf("Commit successful.")
	return nil
}

// enrich asks for a bug number and renders its context into in. A fetch
// failure aborts the run.
func (e *Executor) enrich(ctx context.Context, in *prompt.Input) error {
	if e.opts.Tracker == nil {
		return nil
	}
	label := e.opts.TrackerLabel
	if label == "" {
		label = e.opts.Tracker.Name()
	}

	answer, err := e.ui.Input(ctx, fmt.Sprintf("Enter the %s bug number (if applicable):", label))
	if err != nil {
		return fmt.Errorf("read bug number: %w", err)
	}
	if answer == "" {
		return nil
	}
	number, err := tracker.ParseBugNumber(answer)
	if err != nil {
		return err
	}

	bug, err := e.opts.Tracker.FetchBug(ctx, fmt.Sprint(number))
	if err != nil {
		return fmt.Errorf("fetch bug #%d: %w", number, err)
	}
	in.BugNumber = bug.ID
	in.Tracker = label
	in.BugBlock = tracker.Render(bug)
	return nil
}
