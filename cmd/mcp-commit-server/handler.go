package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/failure"
	"github.com/cexll/evergit/internal/git"
	"github.com/cexll/evergit/internal/logging"
	"github.com/cexll/evergit/internal/prompt"
	"github.com/cexll/evergit/internal/provider"
	"github.com/cexll/evergit/internal/provider/shared"
	"github.com/cexll/evergit/internal/tracker"
)

// GenerateParams defines the input parameters for the tool
type GenerateParams struct {
	Diff      string `json:"diff" jsonschema:"Output of git diff --staged"`
	Name      string `json:"name,omitempty" jsonschema:"Author name"`
	Email     string `json:"email,omitempty" jsonschema:"Author email"`
	BugNumber string `json:"bug_number,omitempty" jsonschema:"Bug or issue number whose context should be included"`
}

// Generator serves generate_commit_message. It produces one draft per call;
// approval and committing stay with the caller.
type Generator struct {
	Provider     provider.Provider
	Model        string
	Tracker      tracker.Tracker
	TrackerLabel string
	// PolicyRoot is searched for a commit policy override.
	PolicyRoot string
	Logger     *zap.Logger
}

// HandleGenerate handles the generate_commit_message tool call
func (g *Generator) HandleGenerate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	params GenerateParams,
) (*mcp.CallToolResult, any, error) {
	logger := logging.OrNop(g.Logger)
	logger.Info("received generate_commit_message request", zap.Int("diff_bytes", len(params.Diff)))

	// 1. Validate parameters
	diff := git.RemoveFileSections(params.Diff, git.DefaultExcludedFiles)
	if strings.TrimSpace(diff) == "" {
		return nil, nil, fmt.Errorf("diff parameter is required")
	}

	// 2. Build the prompts, fetching bug context when asked
	in := prompt.Input{Name: params.Name, Email: params.Email, Diff: diff}
	if params.BugNumber != "" {
		if err := g.enrich(ctx, params.BugNumber, &in); err != nil {
			return errorResult(logger, err), nil, nil
		}
	}
	systemPrompt, err := prompt.LoadPolicy(g.PolicyRoot)
	if err != nil {
		return errorResult(logger, err), nil, nil
	}

	// 3. One completion
	if err := provider.EnsureModel(ctx, g.Provider, g.Model); err != nil {
		return errorResult(logger, err), nil, nil
	}
	draft, err := g.Provider.CreateCompletion(ctx, shared.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt.BuildUserPrompt(in),
		Model:        g.Model,
	})
	if err != nil {
		return errorResult(logger, err), nil, nil
	}
	if strings.TrimSpace(draft) == "" {
		return errorResult(logger, failure.New(failure.UnrecognizedResponse, g.Provider.Name(),
			"backend returned an empty commit message")), nil, nil
	}

	logger.Info("generated commit message", zap.Int("length", len(draft)))
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: draft},
		},
	}, nil, nil
}

func (g *Generator) enrich(ctx context.Context, bugNumber string, in *prompt.Input) error {
	if g.Tracker == nil {
		return fmt.Errorf("no issue tracker configured")
	}
	number, err := tracker.ParseBugNumber(bugNumber)
	if err != nil {
		return err
	}
	bug, err := g.Tracker.FetchBug(ctx, fmt.Sprint(number))
	if err != nil {
		return fmt.Errorf("fetch bug #%d: %w", number, err)
	}
	in.BugNumber = bug.ID
	in.Tracker = g.TrackerLabel
	in.BugBlock = tracker.Render(bug)
	return nil
}

// errorResult reports err to the client as a tool error carrying its
// failure kind.
func errorResult(logger *zap.Logger, err error) *mcp.CallToolResult {
	logger.Warn("generate_commit_message failed", zap.Error(err))
	body, _ := json.MarshalIndent(map[string]string{
		"error": err.Error(),
		"kind":  failure.KindOf(err).String(),
	}, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(body)},
		},
		IsError: true,
	}
}
