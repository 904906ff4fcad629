package provider

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/failure"
	"github.com/cexll/evergit/internal/provider/hosted"
	"github.com/cexll/evergit/internal/provider/selfhosted"
)

// Kind selects between the two provider variants.
type Kind string

const (
	KindHosted     Kind = "hosted"
	KindSelfHosted Kind = "self-hosted"
)

// Config contains provider configuration. It is resolved once per process and
// not modified after a completion call starts.
type Config struct {
	Kind Kind

	// Flavor names the self-hosted backend: "ollama" or "openwebui".
	Flavor string

	// BaseURL is required for self-hosted backends; for hosted it optionally
	// overrides the API endpoint.
	BaseURL string

	Model  string
	APIKey string

	// Timeout bounds self-hosted completion calls. Zero means the default.
	Timeout time.Duration

	// CacheModels memoizes the model list for the process lifetime.
	CacheModels bool

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewProvider creates a provider based on configuration
func NewProvider(cfg *Config) (Provider, error) {
	var p Provider

	switch cfg.Kind {
	case KindHosted:
		if cfg.APIKey == "" {
			return nil, failure.New(failure.MissingCredential, "provider",
				"OpenAI API key not found. Please set it in the OPENAI_API_KEY environment variable")
		}
		opts := []hosted.Option{hosted.WithLogger(cfg.Logger)}
		if cfg.BaseURL != "" {
			opts = append(opts, hosted.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, hosted.WithHTTPClient(cfg.HTTPClient))
		}
		p = hosted.NewProvider(cfg.APIKey, opts...)

	case KindSelfHosted:
		flavor, ok := selfhosted.FlavorByName(cfg.Flavor)
		if !ok {
			return nil, fmt.Errorf("unknown self-hosted flavor: %q (supported: ollama, openwebui)", cfg.Flavor)
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%s: base URL is required", flavor.Label)
		}
		opts := []selfhosted.Option{
			selfhosted.WithLogger(cfg.Logger),
			selfhosted.WithTimeout(cfg.Timeout),
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, selfhosted.WithHTTPClient(cfg.HTTPClient))
		}
		p = selfhosted.NewProvider(flavor, cfg.BaseURL, cfg.APIKey, opts...)

	default:
		return nil, fmt.Errorf("unknown provider kind: %q (supported: hosted, self-hosted)", cfg.Kind)
	}

	if cfg.CacheModels {
		p = WithModelCache(p)
	}
	return p, nil
}
