// Package oauth implements the Launchpad flavor of three-legged OAuth 1.0:
// request token, out-of-band user authorization, access token, all signed
// with PLAINTEXT.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/failure"
	"github.com/cexll/evergit/internal/logging"
)

const (
	// LaunchpadRoot is the authorization server's web root.
	LaunchpadRoot = "https://launchpad.net"

	// DefaultConsumerKey identifies this application to Launchpad.
	DefaultConsumerKey = "evergit"

	requestTokenPage   = "+request-token"
	accessTokenPage    = "+access-token"
	authorizeTokenPage = "+authorize-token"

	signatureMethod = "PLAINTEXT"
)

// param is one ordered OAuth parameter.
type param struct {
	key, value string
}

// headerValue renders params as an Authorization header value.
func headerValue(params []param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%s=%q", p.key, p.value))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

func formValues(params []param) url.Values {
	v := url.Values{}
	for _, p := range params {
		v.Set(p.key, p.value)
	}
	return v
}

// ResourceHeader builds the Authorization header for an authenticated API
// request made with an access token.
func ResourceHeader(consumerKey string, token *Token) string {
	return headerValue([]param{
		{"oauth_consumer_key", consumerKey},
		{"oauth_token", token.Key},
		{"oauth_signature_method", signatureMethod},
		{"oauth_signature", Signature(token.Secret)},
	})
}

// Credentials holds the consumer key and the tokens obtained so far. A
// Credentials value drives one flow and is not shared between goroutines.
type Credentials struct {
	ConsumerKey  string
	RequestToken *Token
	AccessToken  *Token

	// Root is the authorization server's web root; empty means LaunchpadRoot.
	Root   string
	HTTP   *http.Client
	Logger *zap.Logger

	now   func() time.Time
	nonce func() string
}

// NewCredentials returns credentials for consumerKey against LaunchpadRoot.
func NewCredentials(consumerKey string) *Credentials {
	return &Credentials{ConsumerKey: consumerKey, Root: LaunchpadRoot}
}

func (c *Credentials) root() string {
	if c.Root == "" {
		return LaunchpadRoot
	}
	return strings.TrimRight(c.Root, "/")
}

// flowParams are the parameters shared by the request-token and
// access-token steps. A nil token produces the bare "&" signature.
func (c *Credentials) flowParams(token *Token) []param {
	now, nonce := time.Now, Nonce
	if c.now != nil {
		now = c.now
	}
	if c.nonce != nil {
		nonce = c.nonce
	}

	params := []param{{"oauth_consumer_key", c.ConsumerKey}}
	secret := ""
	if token != nil {
		params = append(params, param{"oauth_token", token.Key})
		secret = token.Secret
	}
	return append(params,
		param{"oauth_signature_method", signatureMethod},
		param{"oauth_signature", Signature(secret)},
		param{"oauth_timestamp", strconv.FormatInt(now().Unix(), 10)},
		param{"oauth_nonce", nonce()},
		param{"oauth_version", "1.0"},
	)
}

// GetRequestToken performs step one and returns the URL the user must visit
// to authorize the request token.
func (c *Credentials) GetRequestToken(ctx context.Context) (string, error) {
	if c.ConsumerKey == "" {
		return "", errors.New("consumer key is required")
	}
	if c.AccessToken != nil {
		return "", errors.New("access token already obtained")
	}

	body, err := c.post(ctx, requestTokenPage, c.flowParams(nil))
	if err != nil {
		return "", err
	}
	token, err := TokenFromString(string(body))
	if err != nil {
		return "", err
	}
	c.RequestToken = token
	return AuthorizationURL(c.root(), token), nil
}

// ExchangeRequestTokenForAccessToken performs step three. It fails when the
// user never authorized the request token.
func (c *Credentials) ExchangeRequestTokenForAccessToken(ctx context.Context) error {
	if c.RequestToken == nil {
		return errors.New("GetRequestToken has not been called")
	}

	body, err := c.post(ctx, accessTokenPage, c.flowParams(c.RequestToken))
	if err != nil {
		return err
	}
	token, err := TokenFromString(string(body))
	if err != nil {
		return err
	}
	c.AccessToken = token
	return nil
}

func (c *Credentials) post(ctx context.Context, page string, params []param) ([]byte, error) {
	op := "oauth " + page
	endpoint := c.root() + "/" + page

	form := formValues(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", headerValue(params))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.root())

	return send(httpClient(c.HTTP), req, op, logging.OrNop(c.Logger))
}

// AuthorizationURL returns the authorize-token page for token under root.
func AuthorizationURL(root string, token *Token) string {
	return strings.TrimRight(root, "/") + "/" + authorizeTokenPage + "?oauth_token=" + url.QueryEscape(token.Key)
}

// Confirmer blocks until the operator reports that the browser authorization
// step is done. Confirmation is local only; nothing is polled.
type Confirmer interface {
	WaitForAuthorization(ctx context.Context, authURL string) error
}

// AuthorizationEngine runs the three steps in order.
type AuthorizationEngine struct {
	Root      string
	Confirmer Confirmer
}

// AuthorizationURL returns the authorize-token page for token.
func (e *AuthorizationEngine) AuthorizationURL(token *Token) string {
	root := e.Root
	if root == "" {
		root = LaunchpadRoot
	}
	return AuthorizationURL(root, token)
}

// Authorize obtains an access token into creds.
func (e *AuthorizationEngine) Authorize(ctx context.Context, creds *Credentials) error {
	if e.Confirmer == nil {
		return errors.New("authorization engine requires a confirmer")
	}
	if e.Root != "" {
		creds.Root = e.Root
	}

	authURL, err := creds.GetRequestToken(ctx)
	if err != nil {
		return fmt.Errorf("request token: %w", err)
	}
	if err := e.Confirmer.WaitForAuthorization(ctx, authURL); err != nil {
		return fmt.Errorf("wait for authorization: %w", err)
	}
	if err := creds.ExchangeRequestTokenForAccessToken(ctx); err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	return nil
}

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// send executes req and classifies the outcome.
func send(client *http.Client, req *http.Request, op string, logger *zap.Logger) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, failure.FromTransport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.FromTransport(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug("error response",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.ByteString(logging.PayloadKey, body))
		return nil, failure.New(failure.FromStatus(resp.StatusCode), op, "HTTP error %d", resp.StatusCode)
	}
	return body, nil
}
