package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cexll/evergit/internal/failure"
	"github.com/cexll/evergit/internal/oauth"
	"github.com/cexll/evergit/internal/prompt"
	"github.com/cexll/evergit/internal/provider/shared"
	"github.com/cexll/evergit/internal/tracker"
)

type stubProvider struct {
	models   []string
	draft    string
	err      error
	requests []shared.CompletionRequest
}

func (p *stubProvider) Name() string { return "stub" }
func (p *stubProvider) ValidateModel(_ context.Context, name string) bool {
	return slices.Contains(p.models, name)
}
func (p *stubProvider) ListModels(context.Context) ([]string, error) { return p.models, nil }
func (p *stubProvider) CreateCompletion(_ context.Context, req shared.CompletionRequest) (string, error) {
	p.requests = append(p.requests, req)
	return p.draft, p.err
}

type stubTracker struct{ bug *tracker.Bug }

func (s *stubTracker) Name() string { return "launchpad" }
func (s *stubTracker) FetchBug(context.Context, string) (*tracker.Bug, error) {
	return s.bug, nil
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *mcp.TextContent", res.Content[0])
	}
	return text.Text
}

func newGenerator(t *testing.T, p *stubProvider) *Generator {
	t.Helper()
	return &Generator{Provider: p, Model: "m1", PolicyRoot: t.TempDir()}
}

func TestHandleGenerate_MissingDiff(t *testing.T) {
	g := newGenerator(t, &stubProvider{models: []string{"m1"}})

	for _, diff := range []string{"", "  \n"} {
		if _, _, err := g.HandleGenerate(context.Background(), nil, GenerateParams{Diff: diff}); err == nil {
			t.Errorf("diff %q: expected error", diff)
		}
	}
}

func TestHandleGenerate_ReturnsDraft(t *testing.T) {
	p := &stubProvider{models: []string{"m1"}, draft: "fix: handle empty input"}
	g := newGenerator(t, p)

	res, _, err := g.HandleGenerate(context.Background(), nil, GenerateParams{
		Diff:  "diff --git a/x.go b/x.go\n+x\n",
		Name:  "Ada",
		Email: "ada@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "fix: handle empty input" {
		t.Errorf("draft = %q", got)
	}
	if len(p.requests) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(p.requests))
	}
	req := p.requests[0]
	if req.SystemPrompt != prompt.CommitPolicy || req.Model != "m1" {
		t.Errorf("request = %+v", req)
	}
	if !strings.HasPrefix(req.UserPrompt, "Author: Ada <ada@example.com>") {
		t.Errorf("user prompt = %q", req.UserPrompt)
	}
}

func TestHandleGenerate_PolicyOverride(t *testing.T) {
	p := &stubProvider{models: []string{"m1"}, draft: "d"}
	g := newGenerator(t, p)
	if err := os.WriteFile(filepath.Join(g.PolicyRoot, prompt.PolicyFileName), []byte("Use one line."), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := g.HandleGenerate(context.Background(), nil, GenerateParams{Diff: "+x"}); err != nil {
		t.Fatal(err)
	}
	if p.requests[0].SystemPrompt != "Use one line." {
		t.Errorf("system prompt = %q", p.requests[0].SystemPrompt)
	}
}

func TestHandleGenerate_BugContext(t *testing.T) {
	p := &stubProvider{models: []string{"m1"}, draft: "d"}
	g := newGenerator(t, p)
	g.Tracker = &stubTracker{bug: &tracker.Bug{ID: "7", Title: "Crash"}}
	g.TrackerLabel = "Launchpad"

	res, _, err := g.HandleGenerate(context.Background(), nil, GenerateParams{Diff: "+x", BugNumber: "#7"})
	if err != nil || res.IsError {
		t.Fatalf("HandleGenerate() = %+v, %v", res, err)
	}
	for _, want := range []string{"Launchpad Bug Number: 7", "Bug #7: Crash"} {
		if !strings.Contains(p.requests[0].UserPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestHandleGenerate_ToolErrors(t *testing.T) {
	launchpad := tracker.NewLaunchpad(&oauth.Client{
		ConsumerKey: oauth.DefaultConsumerKey,
		Store:       &oauth.Store{Path: filepath.Join(t.TempDir(), "auth.json")},
	}, nil)

	tests := []struct {
		name     string
		provider *stubProvider
		tracker  tracker.Tracker
		bug      string
		wantKind failure.Kind
		wantText string
	}{
		{
			name:     "unknown model",
			provider: &stubProvider{models: []string{"other"}},
			wantKind: failure.InvalidModel,
		},
		{
			name:     "backend failure",
			provider: &stubProvider{models: []string{"m1"}, err: failure.New(failure.BackendFault, "ollama", "HTTP error 500")},
			wantKind: failure.BackendFault,
		},
		{
			name:     "blank draft",
			provider: &stubProvider{models: []string{"m1"}, draft: " \n"},
			wantKind: failure.UnrecognizedResponse,
			wantText: "empty commit message",
		},
		{
			name:     "no stored launchpad credentials",
			provider: &stubProvider{models: []string{"m1"}},
			tracker:  launchpad,
			bug:      "42",
			wantKind: failure.MissingCredential,
			wantText: "evergit auth",
		},
		{
			name:     "no tracker",
			provider: &stubProvider{models: []string{"m1"}},
			bug:      "42",
			wantText: "no issue tracker configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(t, tt.provider)
			g.Tracker = tt.tracker

			res, _, err := g.HandleGenerate(context.Background(), nil, GenerateParams{Diff: "+x", BugNumber: tt.bug})
			if err != nil {
				t.Fatalf("unexpected protocol error: %v", err)
			}
			if !res.IsError {
				t.Fatal("expected a tool error result")
			}
			text := resultText(t, res)
			if tt.wantKind != failure.Unknown && !strings.Contains(text, `"kind": "`+tt.wantKind.String()+`"`) {
				t.Errorf("result = %s, want kind %s", text, tt.wantKind)
			}
			if !strings.Contains(text, tt.wantText) {
				t.Errorf("result = %s, want %q", text, tt.wantText)
			}
			if tt.bug != "" && len(tt.provider.requests) != 0 {
				t.Error("bug failures must stop before any completion")
			}
		})
	}
}
