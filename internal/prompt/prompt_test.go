package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildUserPrompt(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{
			name: "no bug",
			in:   Input{Name: "Ada", Email: "ada@example.com", Diff: "diff --git a/x b/x"},
			want: "Author: Ada <ada@example.com>\n\nDiff:\ndiff --git a/x b/x",
		},
		{
			name: "bug with context",
			in: Input{
				Name: "Ada", Email: "ada@example.com",
				BugNumber: "42", Tracker: "Launchpad", BugBlock: "Bug #42: Crash",
				Diff: "+fix",
			},
			want: "Author: Ada <ada@example.com>\n\nLaunchpad Bug Number: 42\n\nBug Context:\nBug #42: Crash\n\nDiff:\n+fix",
		},
		{
			name: "bug number without block or tracker",
			in:   Input{Name: "Ada", Email: "ada@example.com", BugNumber: "7", Diff: "+x"},
			want: "Author: Ada <ada@example.com>\n\nBug Number: 7\n\nDiff:\n+x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildUserPrompt(tt.in); got != tt.want {
				t.Errorf("BuildUserPrompt() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestBuildUserPrompt_Order(t *testing.T) {
	got := BuildUserPrompt(Input{
		Name: "Ada", Email: "a@b", BugNumber: "1", BugBlock: "BLOCK", Diff: "DIFF",
	})
	id, bug, block, diff := strings.Index(got, "Ada"), strings.Index(got, "Bug Number"),
		strings.Index(got, "BLOCK"), strings.Index(got, "DIFF")
	if !(id < bug && bug < block && block < diff) {
		t.Errorf("sections out of order: %q", got)
	}
}

func TestWithFeedback(t *testing.T) {
	base := "BASE PROMPT"
	if got := WithFeedback(base, nil); got != base {
		t.Errorf("WithFeedback(no rounds) = %q, want base", got)
	}

	got := WithFeedback(base, []Round{
		{Draft: "feat: add a very long summary line", Feedback: "shorter please"},
		{Draft: "feat: add summary", Feedback: "mention the bug"},
	})
	if !strings.HasPrefix(got, base+"\n") {
		t.Errorf("prompt should start with the base prompt: %q", got)
	}
	for _, want := range []string{
		"attempt 1):\nfeat: add a very long summary line",
		"Feedback on attempt 1:\nshorter please",
		"attempt 2):\nfeat: add summary",
		"Feedback on attempt 2:\nmention the bug",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "shorter please") > strings.Index(got, "mention the bug") {
		t.Error("rounds must appear in order")
	}
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()

	got, err := LoadPolicy(dir)
	if err != nil || got != CommitPolicy {
		t.Fatalf("LoadPolicy(no file) = %q, %v", got, err)
	}

	if err := os.WriteFile(filepath.Join(dir, PolicyFileName), []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := LoadPolicy(dir); got != CommitPolicy {
		t.Error("blank policy file should fall back to the default")
	}

	if err := os.WriteFile(filepath.Join(dir, PolicyFileName), []byte("Use emoji.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := LoadPolicy(dir); got != "Use emoji." {
		t.Errorf("LoadPolicy() = %q, want override", got)
	}

	if got, _ := LoadPolicy(""); got != CommitPolicy {
		t.Error("empty root should use the default")
	}
}
