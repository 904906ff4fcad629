package tracker

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v66/github"
	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/failure"
	"github.com/cexll/evergit/internal/logging"
)

// GitHub fetches issues and their comments from one repository.
type GitHub struct {
	client *gh.Client
	owner  string
	repo   string
	logger *zap.Logger
}

// NewGitHub creates a tracker for repository "owner/repo". An empty token
// makes unauthenticated requests.
func NewGitHub(repository, token string, httpClient *http.Client, logger *zap.Logger) (*GitHub, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("invalid repository %q: expected owner/repo", repository)
	}
	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHub{
		client: client,
		owner:  owner,
		repo:   repo,
		logger: logging.OrNop(logger).Named("tracker.github"),
	}, nil
}

func (g *GitHub) Name() string { return "github" }

// FetchBug retrieves issue id and every comment on it.
func (g *GitHub) FetchBug(ctx context.Context, id string) (*Bug, error) {
	n, err := ParseBugNumber(id)
	if err != nil {
		return nil, err
	}

	issue, resp, err := g.client.Issues.Get(ctx, g.owner, g.repo, n)
	if err != nil {
		return nil, classifyGitHub(fmt.Sprintf("fetch issue #%d", n), resp, err)
	}

	bug := &Bug{
		ID:          strconv.Itoa(n),
		Title:       issue.GetTitle(),
		Description: issue.GetBody(),
	}

	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := g.client.Issues.ListComments(ctx, g.owner, g.repo, n, opts)
		if err != nil {
			return nil, classifyGitHub(fmt.Sprintf("list comments for #%d", n), resp, err)
		}
		for _, c := range comments {
			bug.Messages = append(bug.Messages, Message{
				Author: c.GetUser().GetLogin(),
				Body:   c.GetBody(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	g.logger.Debug("fetched issue", zap.Int("number", n), zap.Int("comments", len(bug.Messages)))
	return bug, nil
}

func classifyGitHub(op string, resp *gh.Response, err error) error {
	if resp != nil && resp.Response != nil {
		return failure.Wrap(failure.FromStatus(resp.StatusCode), "github", err,
			fmt.Sprintf("%s: HTTP %d", op, resp.StatusCode))
	}
	return failure.FromTransport("github", err)
}
