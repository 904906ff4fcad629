package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/failure"
	"github.com/cexll/evergit/internal/logging"
	"github.com/cexll/evergit/internal/oauth"
)

// LaunchpadAPIRoot is the versioned Launchpad REST root.
const LaunchpadAPIRoot = "https://api.launchpad.net/1.0"

// maxMessagePages bounds how many message collection pages are followed.
const maxMessagePages = 20

// SignedClient authorizes and issues PLAINTEXT-signed requests.
type SignedClient interface {
	Authorize(ctx context.Context) (*oauth.Token, error)
	SignedGet(ctx context.Context, rawURL string, token *oauth.Token) ([]byte, error)
}

// Launchpad fetches bugs through the Launchpad REST API.
type Launchpad struct {
	APIRoot string
	Client  SignedClient
	logger  *zap.Logger
}

// NewLaunchpad creates a Launchpad tracker.
func NewLaunchpad(client SignedClient, logger *zap.Logger) *Launchpad {
	return &Launchpad{
		APIRoot: LaunchpadAPIRoot,
		Client:  client,
		logger:  logging.OrNop(logger).Named("tracker.launchpad"),
	}
}

func (l *Launchpad) Name() string { return "launchpad" }

type launchpadBug struct {
	ID                     int    `json:"id"`
	Title                  string `json:"title"`
	Description            string `json:"description"`
	MessagesCollectionLink string `json:"messages_collection_link"`
}

type launchpadMessages struct {
	Entries []struct {
		Subject   string `json:"subject"`
		Content   string `json:"content"`
		OwnerLink string `json:"owner_link"`
	} `json:"entries"`
	NextCollectionLink string `json:"next_collection_link"`
}

// FetchBug retrieves the bug and its messages. Both requests must succeed.
func (l *Launchpad) FetchBug(ctx context.Context, id string) (*Bug, error) {
	n, err := ParseBugNumber(id)
	if err != nil {
		return nil, err
	}
	token, err := l.Client.Authorize(ctx)
	if err != nil {
		return nil, fmt.Errorf("launchpad authorization: %w", err)
	}

	root := strings.TrimRight(l.APIRoot, "/")
	if root == "" {
		root = LaunchpadAPIRoot
	}
	bugURL := root + "/bugs/" + strconv.Itoa(n)

	raw, err := l.Client.SignedGet(ctx, bugURL, token)
	if err != nil {
		return nil, fmt.Errorf("fetch bug %d: %w", n, err)
	}
	var lb launchpadBug
	if err := json.Unmarshal(raw, &lb); err != nil {
		return nil, failure.Wrap(failure.UnrecognizedResponse, "launchpad", err, "bug response is not valid JSON")
	}

	bug := &Bug{ID: strconv.Itoa(n), Title: lb.Title, Description: lb.Description}
	if lb.ID != 0 {
		bug.ID = strconv.Itoa(lb.ID)
	}

	next := lb.MessagesCollectionLink
	if next == "" {
		next = bugURL + "/messages"
	}
	for page := 0; next != "" && page < maxMessagePages; page++ {
		raw, err := l.Client.SignedGet(ctx, next, token)
		if err != nil {
			return nil, fmt.Errorf("fetch messages for bug %d: %w", n, err)
		}
		var msgs launchpadMessages
		if err := json.Unmarshal(raw, &msgs); err != nil {
			return nil, failure.Wrap(failure.UnrecognizedResponse, "launchpad", err, "messages response is not valid JSON")
		}
		for _, e := range msgs.Entries {
			bug.Messages = append(bug.Messages, Message{
				Author:  ownerName(e.OwnerLink),
				Subject: e.Subject,
				Body:    e.Content,
			})
		}
		next = msgs.NextCollectionLink
	}
	if next != "" {
		l.logger.Warn("message paging limit reached", zap.String("id", bug.ID), zap.String("next", next))
		return nil, failure.New(failure.ProtocolViolation, "launchpad",
			"bug %d has more than %d pages of messages", n, maxMessagePages)
	}

	l.logger.Debug("fetched bug", zap.String("id", bug.ID), zap.Int("messages", len(bug.Messages)))
	return bug, nil
}

// ownerName turns ".../~alice" into "alice".
func ownerName(link string) string {
	if link == "" {
		return "unknown"
	}
	return strings.TrimPrefix(path.Base(strings.TrimRight(link, "/")), "~")
}
