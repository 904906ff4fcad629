package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/cexll/evergit/internal/provider"
	"github.com/cexll/evergit/internal/provider/hosted"
)

// Defaults for the self-hosted backends.
const (
	DefaultProvider         = "openai"
	DefaultSelfHostedModel  = "llama3"
	DefaultOllamaBaseURL    = "http://localhost:11434"
	DefaultOpenWebUIBaseURL = "http://localhost:3000"
	DefaultTracker          = "launchpad"
	DefaultTimeoutSeconds   = 300
)

// Config holds all configuration for one evergit run. Precedence is
// command-line flag, then environment, then the config file, then defaults.
type Config struct {
	// Provider settings
	Provider    string // "openai", "ollama" or "openwebui"
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	CacheModels bool

	// Author overrides; empty means use git's identity.
	Name  string
	Email string

	// Issue tracker settings
	Tracker     string // "launchpad" or "github"
	GitHubRepo  string
	GitHubToken string

	// Home holds credentials and the log file.
	Home string
	// Path is the config file that was read.
	Path string
}

// Overrides are values supplied on the command line.
type Overrides struct {
	Provider string
	Model    string
}

// Load loads configuration from the environment and the config file.
func Load(overrides Overrides) (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	file, err := (&Store{Path: path}).All()
	if err != nil {
		return nil, err
	}

	home, err := homeDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Provider:    firstNonEmpty(overrides.Provider, os.Getenv("EVERGIT_PROVIDER"), file["provider"], DefaultProvider),
		Timeout:     time.Duration(getEnvInt("EVERGIT_TIMEOUT_SECONDS", DefaultTimeoutSeconds)) * time.Second,
		CacheModels: file["cacheModels"] == "true",
		Name:        file["name"],
		Email:       file["email"],
		Tracker:     firstNonEmpty(file["tracker"], DefaultTracker),
		GitHubRepo:  file["githubRepo"],
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
		Home:        home,
		Path:        path,
	}

	switch cfg.Provider {
	case "openai":
		cfg.Model = firstNonEmpty(overrides.Model, os.Getenv("EVERGIT_MODEL"), file["openaiModel"], hosted.DefaultModel)
		cfg.BaseURL = os.Getenv("EVERGIT_BASE_URL")
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	case "ollama":
		cfg.Model = firstNonEmpty(overrides.Model, os.Getenv("EVERGIT_MODEL"), file["ollamaModel"], DefaultSelfHostedModel)
		cfg.BaseURL = firstNonEmpty(os.Getenv("EVERGIT_BASE_URL"), file["ollamaBaseUrl"], DefaultOllamaBaseURL)
		cfg.APIKey = os.Getenv("OLLAMA_API_KEY")
	case "openwebui":
		cfg.Model = firstNonEmpty(overrides.Model, os.Getenv("EVERGIT_MODEL"), file["openwebuiModel"], DefaultSelfHostedModel)
		cfg.BaseURL = firstNonEmpty(os.Getenv("EVERGIT_BASE_URL"), file["openwebuiBaseUrl"], DefaultOpenWebUIBaseURL)
		cfg.APIKey = os.Getenv("OPENWEBUI_API_KEY")
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that the resolved configuration is usable
func (c *Config) validate() error {
	if !slices.Contains(Providers, c.Provider) {
		return fmt.Errorf("invalid provider: %s (must be one of openai, ollama, openwebui)", c.Provider)
	}
	if !slices.Contains(Trackers, c.Tracker) {
		return fmt.Errorf("invalid tracker: %s (must be launchpad or github)", c.Tracker)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("EVERGIT_TIMEOUT_SECONDS must be greater than 0")
	}
	return nil
}

// ProviderConfig returns the provider factory input. A missing hosted API key
// is reported by the factory, not here.
func (c *Config) ProviderConfig() *provider.Config {
	pc := &provider.Config{
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Timeout:     c.Timeout,
		CacheModels: c.CacheModels,
	}
	if c.Provider == "openai" {
		pc.Kind = provider.KindHosted
	} else {
		pc.Kind = provider.KindSelfHosted
		pc.Flavor = c.Provider
	}
	return pc
}

// CredentialsPath is where Launchpad credentials are stored.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.Home, "auth.json")
}

// LogPath is the diagnostics log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Home, "evergit.log")
}

func homeDir() (string, error) {
	if dir := os.Getenv("EVERGIT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".evergit"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// getEnvInt gets environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
