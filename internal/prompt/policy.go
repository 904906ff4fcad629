package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PolicyFileName is looked up in the repository root to replace CommitPolicy.
const PolicyFileName = ".evergit-policy.md"

// CommitPolicy is the default system prompt.
const CommitPolicy = `You write git commit messages for the staged changes you are given.

Format:
- First line: a summary in the imperative mood, at most 72 characters, no trailing period.
- Then one blank line.
- Then a body wrapped at 72 columns explaining what changed and why. Omit the body only for trivial changes.
- When a bug number is provided, end the body with a line "LP: #<number>" for Launchpad bugs or "Fixes #<number>" for GitHub issues.

Rules:
- Describe only what the diff shows. Do not invent motivation that is not supported by the diff or the bug context.
- Use the bug context to explain intent, but do not copy it verbatim.
- Do not mention file names unless they help the reader.
- Output the commit message only: no preamble, no code fences, no quotes.`

// LoadPolicy returns the contents of PolicyFileName under root when present
// and non-empty, and CommitPolicy otherwise.
func LoadPolicy(root string) (string, error) {
	if root == "" {
		return CommitPolicy, nil
	}
	data, err := os.ReadFile(filepath.Join(root, PolicyFileName))
	if errors.Is(err, os.ErrNotExist) {
		return CommitPolicy, nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", PolicyFileName, err)
	}
	if policy := strings.TrimSpace(string(data)); policy != "" {
		return policy, nil
	}
	return CommitPolicy, nil
}
