// Package git is the VCS gateway: every repository interaction goes through
// the Gateway interface so workflows can be tested without a repository.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/logging"
)

// ErrNotRepository is returned when the working directory is not inside a
// git work tree.
var ErrNotRepository = errors.New("not in a git repository")

// Identity is the configured author.
type Identity struct {
	Name  string
	Email string
}

// Gateway is the set of repository operations the commit workflow needs.
type Gateway interface {
	IsRepo(ctx context.Context) bool
	Root(ctx context.Context) (string, error)
	HasChanges(ctx context.Context) (bool, error)
	ListChangedFiles(ctx context.Context) ([]string, error)
	Stage(ctx context.Context, files ...string) error
	UnstageAll(ctx context.Context) error
	StagedDiff(ctx context.Context) (string, error)
	CurrentBranch(ctx context.Context) (string, error)
	Identity(ctx context.Context) (Identity, error)
	Commit(ctx context.Context, message string) error
}

// CLI implements Gateway by shelling out to git.
type CLI struct {
	// Dir is the working directory; empty means the process directory.
	Dir string

	// ExcludedFiles are removed from StagedDiff output by base name.
	ExcludedFiles []string

	runner CommandRunner
	logger *zap.Logger
}

// NewCLI creates a git gateway rooted at dir.
func NewCLI(dir string, runner CommandRunner, logger *zap.Logger) *CLI {
	if runner == nil {
		runner = &RealCommandRunner{}
	}
	return &CLI{
		Dir:           dir,
		ExcludedFiles: DefaultExcludedFiles,
		runner:        runner,
		logger:        logging.OrNop(logger).Named("git"),
	}
}

func (g *CLI) git(ctx context.Context, args ...string) (string, error) {
	g.logger.Debug("exec", zap.Strings("args", args))
	out, err := g.runner.RunInDir(ctx, g.Dir, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}

func (g *CLI) IsRepo(ctx context.Context) bool {
	out, err := g.git(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

func (g *CLI) Root(ctx context.Context) (string, error) {
	out, err := g.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", ErrNotRepository
	}
	return strings.TrimSpace(out), nil
}

func (g *CLI) HasChanges(ctx context.Context) (bool, error) {
	out, err := g.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// ListChangedFiles returns every modified, staged, deleted or untracked path.
// For renames only the new path is listed.
func (g *CLI) ListChangedFiles(ctx context.Context) ([]string, error) {
	out, err := g.git(ctx, "status", "--porcelain", "-z", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return parsePorcelainZ(out), nil
}

// parsePorcelainZ parses `git status --porcelain -z`. Rename and copy
// entries are followed by their source path, which is skipped.
func parsePorcelainZ(out string) []string {
	entries := strings.Split(out, "\x00")
	files := make([]string, 0, len(entries))
	for i := 0; i < len(entries); i++ {
		e := entries[i]
		if len(e) < 4 {
			continue
		}
		status, file := e[:2], e[3:]
		files = append(files, file)
		if status[0] == 'R' || status[0] == 'C' {
			i++
		}
	}
	return files
}

func (g *CLI) Stage(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	_, err := g.git(ctx, append([]string{"add", "--"}, files...)...)
	return err
}

// UnstageAll clears the index back to HEAD. In a repository without commits
// every path is removed from the index instead.
func (g *CLI) UnstageAll(ctx context.Context) error {
	if _, err := g.git(ctx, "rev-parse", "--verify", "--quiet", "HEAD"); err != nil {
		_, err = g.git(ctx, "rm", "-r", "--cached", "--quiet", "--ignore-unmatch", "--", ".")
		return err
	}
	_, err := g.git(ctx, "reset", "--quiet", "HEAD", "--", ".")
	return err
}

func (g *CLI) StagedDiff(ctx context.Context) (string, error) {
	out, err := g.git(ctx, "diff", "--staged")
	if err != nil {
		return "", err
	}
	return RemoveFileSections(out, g.ExcludedFiles), nil
}

func (g *CLI) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		// No commits yet.
		out, err = g.git(ctx, "symbolic-ref", "--short", "HEAD")
		if err != nil {
			return "", fmt.Errorf("unable to get current branch name: %w", err)
		}
	}
	return strings.TrimSpace(out), nil
}

// Identity reads user.name and user.email. Unset values are returned empty.
func (g *CLI) Identity(ctx context.Context) (Identity, error) {
	var id Identity
	name, err := g.git(ctx, "config", "user.name")
	if err == nil {
		id.Name = strings.TrimSpace(name)
	}
	email, err := g.git(ctx, "config", "user.email")
	if err == nil {
		id.Email = strings.TrimSpace(email)
	}
	return id, nil
}

// Commit records the staged changes with message exactly as given.
func (g *CLI) Commit(ctx context.Context, message string) error {
	f, err := os.CreateTemp("", "evergit-commit-*.txt")
	if err != nil {
		return fmt.Errorf("create commit message file: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if _, err := f.WriteString(message); err != nil {
		_ = f.Close()
		return fmt.Errorf("write commit message file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close commit message file: %w", err)
	}

	_, err = g.git(ctx, "commit", "--cleanup=verbatim", "-F", f.Name())
	return err
}
