package hosted

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/failure"
	"github.com/cexll/evergit/internal/logging"
	"github.com/cexll/evergit/internal/provider/shared"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

// Provider implements the hosted completion backend on the OpenAI API.
type Provider struct {
	client openai.Client
	apiKey string
	logger *zap.Logger
}

// Option configures a Provider.
type Option func(*config)

type config struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// NewProvider creates a hosted provider. An empty apiKey is accepted here and
// rejected by each call before any request is sent.
func NewProvider(apiKey string, opts ...Option) *Provider {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.httpClient))
	}

	return &Provider{
		client: openai.NewClient(clientOpts...),
		apiKey: apiKey,
		logger: logging.OrNop(cfg.logger).Named("provider.hosted"),
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

func (p *Provider) missingKey(op string) error {
	if strings.TrimSpace(p.apiKey) != "" {
		return nil
	}
	return failure.New(failure.MissingCredential, op,
		"OpenAI API key not found. Please set it in the OPENAI_API_KEY environment variable")
}

// ValidateModel looks the model up by id. Only a successful lookup counts.
func (p *Provider) ValidateModel(ctx context.Context, name string) bool {
	if p.missingKey("openai.validate") != nil {
		return false
	}
	model, err := p.client.Models.Get(ctx, name)
	if err != nil {
		p.logger.Debug("model lookup failed", zap.String("model", name), zap.Error(err))
		return false
	}
	return model != nil && model.ID != ""
}

// ListModels returns every model id visible to the API key.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	if err := p.missingKey("openai.models"); err != nil {
		return nil, err
	}
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, classify("openai.models", err)
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

// CreateCompletion sends the system and user prompts and returns the first
// choice, trimmed.
func (p *Provider) CreateCompletion(ctx context.Context, req shared.CompletionRequest) (string, error) {
	if err := p.missingKey("openai.completion"); err != nil {
		return "", err
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
	}

	p.logger.Debug("chat completion", zap.String("model", model), zap.Int("prompt_chars", len(req.UserPrompt)))
	start := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		p.logger.Debug("chat completion failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", classify("openai.completion", err)
	}
	if len(completion.Choices) == 0 {
		return "", failure.New(failure.UnrecognizedResponse, "openai.completion", "OpenAI returned no choices")
	}

	p.logger.Debug("chat completion done",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int64("completion_tokens", completion.Usage.CompletionTokens))
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func classify(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		kind := failure.FromStatus(apiErr.StatusCode)
		return failure.Wrap(kind, op, err, "OpenAI API error ("+http.StatusText(apiErr.StatusCode)+")")
	}
	return failure.FromTransport(op, err)
}
