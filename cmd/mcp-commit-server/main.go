package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/cexll/evergit/internal/config"
	"github.com/cexll/evergit/internal/logging"
	"github.com/cexll/evergit/internal/oauth"
	"github.com/cexll/evergit/internal/provider"
	"github.com/cexll/evergit/internal/tracker"
)

func main() {
	_ = godotenv.Load()

	// 1. Resolve configuration; stdout belongs to the transport
	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		log.Fatalf("[MCP Commit Server] Failed to load configuration: %v", err)
	}
	logger, err := logging.New(logging.Options{File: cfg.LogPath()})
	if err != nil {
		log.Fatalf("[MCP Commit Server] Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("mcp")

	pc := cfg.ProviderConfig()
	pc.Logger = logger
	p, err := provider.NewProvider(pc)
	if err != nil {
		log.Fatalf("[MCP Commit Server] Failed to initialize AI provider: %v", err)
	}

	root, err := os.Getwd()
	if err != nil {
		log.Fatalf("[MCP Commit Server] Failed to resolve working directory: %v", err)
	}
	gen := &Generator{
		Provider:   p,
		Model:      cfg.Model,
		PolicyRoot: root,
		Logger:     logger,
	}
	gen.Tracker, gen.TrackerLabel = newTracker(cfg, logger)

	logger.Info("starting commit message MCP server",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.String("tracker", gen.TrackerLabel))

	// 2. Create MCP server
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "evergit-commit-server",
		Version: "v1.0.0",
	}, nil)

	// 3. Register generate_commit_message tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_commit_message",
		Description: "Draft a commit message for a staged diff, optionally using bug context from the configured issue tracker",
	}, gen.HandleGenerate)

	// 4. Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start server with stdio transport
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		logger.Error("server error", zap.Error(err))
		log.Fatalf("[MCP Commit Server] Server error: %v", err)
	}
	logger.Info("server stopped")
}

// newTracker returns the configured tracker. Launchpad only uses stored
// credentials here since there is no terminal to authorize on.
func newTracker(cfg *config.Config, logger *zap.Logger) (tracker.Tracker, string) {
	switch cfg.Tracker {
	case "github":
		if cfg.GitHubRepo == "" {
			return nil, ""
		}
		gh, err := tracker.NewGitHub(cfg.GitHubRepo, cfg.GitHubToken, nil, logger)
		if err != nil {
			logger.Warn("GitHub tracker disabled", zap.Error(err))
			return nil, ""
		}
		return gh, "GitHub"
	default:
		client := &oauth.Client{
			ConsumerKey: oauth.DefaultConsumerKey,
			Store:       &oauth.Store{Path: cfg.CredentialsPath()},
			Logger:      logger.Named("oauth"),
		}
		return tracker.NewLaunchpad(client, logger), "Launchpad"
	}
}
