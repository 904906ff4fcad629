// Package negotiation turns one completion call into an approve, revise or
// abort loop that ends in exactly one commit or none.
package negotiation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/failure"
	"github.com/cexll/evergit/internal/logging"
	"github.com/cexll/evergit/internal/prompt"
	"github.com/cexll/evergit/internal/provider/shared"
)

// State is a negotiation state.
type State int

const (
	Idle State = iota
	Generating
	AwaitingApproval
	Regenerating
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Generating:
		return "generating"
	case AwaitingApproval:
		return "awaiting-approval"
	case Regenerating:
		return "regenerating"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Committed || s == Aborted
}

// Round is one rejected draft and the feedback given for it.
type Round = prompt.Round

// Session is the state of one negotiation. BasePrompt and SystemPrompt never
// change; Transcript only grows.
type Session struct {
	State        State
	Draft        string
	SystemPrompt string
	BasePrompt   string
	Transcript   []Round
}

// Completer produces a draft for a prompt.
type Completer interface {
	CreateCompletion(ctx context.Context, req shared.CompletionRequest) (string, error)
}

// Reviewer is the user side of the loop.
type Reviewer interface {
	// Approve asks whether draft should be committed.
	Approve(ctx context.Context, draft string) (bool, error)
	// Feedback asks how to improve a declined draft. Empty means give up.
	Feedback(ctx context.Context) (string, error)
}

// Committer applies the outcome to the repository.
type Committer interface {
	Commit(ctx context.Context, message string) error
	UnstageAll(ctx context.Context) error
}

// Engine runs negotiation sessions.
type Engine struct {
	Completer Completer
	Reviewer  Reviewer
	Committer Committer
	Model     string

	// OnTransition is called after every state change.
	OnTransition func(from, to State)
	// OnDraft is called with each draft before the reviewer sees it.
	OnDraft func(attempt int, draft string)

	logger *zap.Logger
}

// NewEngine creates an engine.
func NewEngine(completer Completer, reviewer Reviewer, committer Committer, model string, logger *zap.Logger) *Engine {
	return &Engine{
		Completer: completer,
		Reviewer:  reviewer,
		Committer: committer,
		Model:     model,
		logger:    logging.OrNop(logger).Named("negotiation"),
	}
}

func (e *Engine) move(s *Session, to State) {
	from := s.State
	s.State = to
	e.log().Debug("transition", zap.Stringer("from", from), zap.Stringer("to", to))
	if e.OnTransition != nil {
		e.OnTransition(from, to)
	}
}

func (e *Engine) log() *zap.Logger {
	return logging.OrNop(e.logger)
}

// Run negotiates a commit message. It returns the finished session; the
// session ends Aborted with a nil error when the user gives up, and Aborted
// with a non-nil error when a collaborator fails.
func (e *Engine) Run(ctx context.Context, systemPrompt, basePrompt string) (*Session, error) {
	s := &Session{State: Idle, SystemPrompt: systemPrompt, BasePrompt: basePrompt}
	e.move(s, Generating)

	for attempt := 1; ; attempt++ {
		draft, err := e.generate(ctx, s)
		if err != nil {
			// Staged files are left in place on this path.
			e.log().Warn("completion failed, leaving staged files in place", zap.Error(err))
			e.move(s, Aborted)
			return s, err
		}
		s.Draft = draft
		if e.OnDraft != nil {
			e.OnDraft(attempt, draft)
		}
		e.move(s, AwaitingApproval)

		approved, err := e.Reviewer.Approve(ctx, draft)
		if err != nil {
			e.move(s, Aborted)
			return s, fmt.Errorf("read approval: %w", err)
		}
		if approved {
			if err := e.Committer.Commit(ctx, draft); err != nil {
				e.move(s, Aborted)
				return s, fmt.Errorf("commit: %w", err)
			}
			e.move(s, Committed)
			return s, nil
		}

		feedback, err := e.Reviewer.Feedback(ctx)
		if err != nil {
			e.move(s, Aborted)
			return s, fmt.Errorf("read feedback: %w", err)
		}
		feedback = strings.TrimSpace(feedback)
		if feedback == "" {
			e.move(s, Aborted)
			if err := e.Committer.UnstageAll(ctx); err != nil {
				return s, fmt.Errorf("unstage after abort: %w", err)
			}
			return s, nil
		}

		s.Transcript = append(s.Transcript, Round{Draft: draft, Feedback: feedback})
		e.move(s, Regenerating)
		e.move(s, Generating)
	}
}

func (e *Engine) generate(ctx context.Context, s *Session) (string, error) {
	req := shared.CompletionRequest{
		SystemPrompt: s.SystemPrompt,
		UserPrompt:   prompt.WithFeedback(s.BasePrompt, s.Transcript),
		Model:        e.Model,
	}
	draft, err := e.Completer.CreateCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(draft) == "" {
		return "", failure.New(failure.UnrecognizedResponse, "negotiation", "backend returned an empty commit message")
	}
	return draft, nil
}
