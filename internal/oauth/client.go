package oauth

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/failure"
	"github.com/cexll/evergit/internal/logging"
)

// Client owns the stored access token and signs API requests with it.
type Client struct {
	ConsumerKey string
	Store       *Store
	Engine      *AuthorizationEngine
	HTTP        *http.Client
	Logger      *zap.Logger
}

// NewClient returns a Launchpad client using the default consumer key.
func NewClient(store *Store, confirmer Confirmer, logger *zap.Logger) *Client {
	return &Client{
		ConsumerKey: DefaultConsumerKey,
		Store:       store,
		Engine:      &AuthorizationEngine{Root: LaunchpadRoot, Confirmer: confirmer},
		Logger:      logging.OrNop(logger).Named("oauth"),
	}
}

// Authorize returns the stored access token, or runs the full flow and
// stores the result. Nothing is persisted unless every step succeeds.
func (c *Client) Authorize(ctx context.Context) (*Token, error) {
	logger := logging.OrNop(c.Logger)

	if c.Store != nil {
		token, err := c.Store.Load()
		if err != nil {
			return nil, err
		}
		if token != nil {
			logger.Debug("using stored credentials", zap.String("path", c.Store.Path))
			return token, nil
		}
	}

	if c.Engine == nil {
		return nil, failure.New(failure.MissingCredential, "oauth",
			"no stored Launchpad credentials. Run 'evergit auth' first")
	}

	creds := &Credentials{ConsumerKey: c.ConsumerKey, HTTP: c.HTTP, Logger: logger}
	if err := c.Engine.Authorize(ctx, creds); err != nil {
		return nil, err
	}

	if c.Store != nil {
		if err := c.Store.Save(creds.AccessToken); err != nil {
			return nil, err
		}
	}
	logger.Info("authorization successful")
	return creds.AccessToken, nil
}

// Reset drops stored credentials so the next Authorize runs the flow again.
func (c *Client) Reset() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Clear()
}

// SignedGet issues a GET for rawURL carrying the PLAINTEXT resource header.
func (c *Client) SignedGet(ctx context.Context, rawURL string, token *Token) ([]byte, error) {
	if token == nil {
		return nil, failure.New(failure.MissingCredential, "oauth", "no access token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", ResourceHeader(c.ConsumerKey, token))
	req.Header.Set("Accept", "application/json")

	body, err := send(httpClient(c.HTTP), req, "launchpad", logging.OrNop(c.Logger))
	if failure.Is(err, failure.AuthRejected) {
		return nil, &failure.Error{
			Kind: failure.AuthRejected,
			Op:   "launchpad",
			Msg:  "Launchpad rejected the stored credentials. Run 'evergit auth --reset'",
			Err:  err,
		}
	}
	return body, err
}
