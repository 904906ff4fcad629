package selfhosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/failure"
	"github.com/cexll/evergit/internal/logging"
	"github.com/cexll/evergit/internal/provider/shared"
)

// DefaultTimeout bounds completion calls; local models may need to load first.
const DefaultTimeout = 5 * time.Minute

// Flavor describes the endpoints of one self-hosted backend.
type Flavor struct {
	Name string
	// Label is used in user-facing diagnostics.
	Label        string
	ModelsPath   string
	ChatPath     string
	APIKeyEnv    string
	ModelFields  []string
	StreamFlag   bool
	DefaultURL   string
	DefaultModel string
}

var (
	// Ollama serves /api/tags and /api/chat.
	Ollama = Flavor{
		Name:         "ollama",
		Label:        "Ollama",
		ModelsPath:   "/api/tags",
		ChatPath:     "/api/chat",
		APIKeyEnv:    "OLLAMA_API_KEY",
		ModelFields:  []string{"models.#.name"},
		StreamFlag:   true,
		DefaultURL:   "http://localhost:11434",
		DefaultModel: "llama3",
	}

	// OpenWebUI serves /api/models and /api/chat/completions.
	OpenWebUI = Flavor{
		Name:         "openwebui",
		Label:        "Open WebUI",
		ModelsPath:   "/api/models",
		ChatPath:     "/api/chat/completions",
		APIKeyEnv:    "OPENWEBUI_API_KEY",
		ModelFields:  []string{"data.#.name", "models.#.name"},
		DefaultURL:   "http://localhost:3000",
		DefaultModel: "llama3",
	}
)

// FlavorByName returns the flavor registered under name.
func FlavorByName(name string) (Flavor, bool) {
	switch name {
	case Ollama.Name:
		return Ollama, true
	case OpenWebUI.Name:
		return OpenWebUI, true
	default:
		return Flavor{}, false
	}
}

// Provider talks to a self-hosted, loosely OpenAI-compatible backend.
type Provider struct {
	flavor     Flavor
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithTimeout overrides DefaultTimeout for completion calls.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) { p.httpClient = hc }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// NewProvider creates a self-hosted provider. apiKey is optional; when set it
// is sent as a bearer token.
func NewProvider(flavor Flavor, baseURL, apiKey string, opts ...Option) *Provider {
	p := &Provider{
		flavor:     flavor,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = logging.OrNop(p.logger).Named("provider." + flavor.Name)
	return p
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.flavor.Name
}

// ValidateModel lists the backend's models and checks membership; the
// backends have no single-model lookup.
func (p *Provider) ValidateModel(ctx context.Context, name string) bool {
	models, err := p.ListModels(ctx)
	if err != nil {
		p.logger.Debug("model listing failed during validation", zap.Error(err))
		return false
	}
	return slices.Contains(models, name)
}

// ListModels fetches the model list. Nothing is cached.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	op := p.flavor.Name + ".models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+p.flavor.ModelsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.authorize(req)

	body, err := p.do(op, req)
	if err != nil {
		return nil, err
	}
	names, ok := shared.ExtractModelNames(body, p.flavor.ModelFields...)
	if !ok {
		p.logger.Debug("unexpected model list payload", zap.String(logging.PayloadKey, shared.TruncateString(string(body), 2000)))
		return nil, failure.New(failure.UnrecognizedResponse, op, "unexpected %s model list format", p.flavor.Label)
	}
	return names, nil
}

type chatRequest struct {
	Model    string               `json:"model"`
	Messages []shared.ChatMessage `json:"messages"`
	Stream   *bool                `json:"stream,omitempty"`
}

// CreateCompletion posts a chat request and normalizes whichever envelope
// the backend answers with.
func (p *Provider) CreateCompletion(ctx context.Context, req shared.CompletionRequest) (string, error) {
	op := p.flavor.Name + ".completion"
	payload := chatRequest{Model: req.Model, Messages: req.Messages()}
	if p.flavor.StreamFlag {
		stream := false
		payload.Stream = &stream
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := p.baseURL + p.flavor.ChatPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.authorize(httpReq)

	p.logger.Debug("chat completion",
		zap.String("endpoint", endpoint),
		zap.String("model", req.Model),
		zap.Bool("authenticated", p.apiKey != ""))

	start := time.Now()
	body, err := p.do(op, httpReq)
	if err != nil {
		p.logger.Debug("chat completion failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", p.describe(err, req.Model)
	}

	content, shape, ok := shared.ExtractContent(body)
	if !ok {
		p.logger.Debug("unexpected response structure", zap.String(logging.PayloadKey, shared.TruncateString(string(body), 4000)))
		return "", failure.New(failure.UnrecognizedResponse, op,
			"unexpected %s response structure (see log for details)", p.flavor.Label)
	}
	p.logger.Debug("chat completion done",
		zap.Duration("elapsed", time.Since(start)),
		zap.String("shape", shape),
		zap.Int("content_chars", len(content)))
	return content, nil
}

func (p *Provider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

// do executes req and returns the body of a 2xx response. Other outcomes are
// classified; error bodies go to the log only.
func (p *Provider) do(op string, req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, failure.FromTransport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.FromTransport(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Debug("error response",
			zap.Int("status", resp.StatusCode),
			zap.String(logging.PayloadKey, shared.TruncateString(string(body), 2000)))
		kind := failure.FromStatus(resp.StatusCode)
		return nil, &failure.Error{Kind: kind, Op: op, Msg: fmt.Sprintf("%s API error (%d)", p.flavor.Label, resp.StatusCode)}
	}
	return body, nil
}

// describe replaces the generic message with an actionable one per kind.
func (p *Provider) describe(err error, model string) error {
	fe, ok := err.(*failure.Error)
	if !ok {
		return err
	}
	switch fe.Kind {
	case failure.NetworkTimeout:
		fe.Msg = fmt.Sprintf("%s request timed out. The model might be loading or the server is slow", p.flavor.Label)
	case failure.AuthRejected:
		fe.Msg = fmt.Sprintf("authentication failed. Please ensure %s is set correctly", p.flavor.APIKeyEnv)
	case failure.ResourceNotFound:
		fe.Msg = fmt.Sprintf("model '%s' not found on the %s server", model, p.flavor.Label)
	case failure.BackendUnreachable:
		fe.Msg = fmt.Sprintf("no response from %s server at %s. Is the server running?", p.flavor.Label, p.baseURL)
	}
	return fe
}
