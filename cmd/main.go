package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/cexll/evergit/internal/config"
	"github.com/cexll/evergit/internal/executor"
	"github.com/cexll/evergit/internal/git"
	"github.com/cexll/evergit/internal/logging"
	"github.com/cexll/evergit/internal/oauth"
	"github.com/cexll/evergit/internal/provider"
	"github.com/cexll/evergit/internal/terminal"
	"github.com/cexll/evergit/internal/tracker"
)

var (
	loadDotEnv      = godotenv.Load
	newProvider     = provider.NewProvider
	newRunner       = func() git.CommandRunner { return &git.RealCommandRunner{} }
	workDir         = os.Getwd
	stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit status.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	// Load .env file (ignore error if file doesn't exist)
	_ = loadDotEnv()

	a := &app{in: in, out: out, printer: terminal.NewPrinter(out, errOut)}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if a.logger != nil {
		if err != nil {
			a.logger.Error("command failed", zap.Error(err))
		}
		_ = a.logger.Sync()
	}
	if err != nil {
		// The executor already reported the abort.
		if !executor.IsAborted(err) {
			a.printer.Errorf("%v", err)
		}
		return 1
	}
	return 0
}

type app struct {
	in      io.Reader
	out     io.Writer
	printer *terminal.Printer

	verbose   bool
	overrides config.Overrides
	logger    *zap.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "evergit",
		Short:         "Write commit messages for staged changes with a language model",
		Args:          cobra.NoArgs,
		RunE:          a.runCommit,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "print diagnostics to stderr")
	root.PersistentFlags().StringVarP(&a.overrides.Model, "model", "m", "", "model to use for this run")
	root.PersistentFlags().StringVarP(&a.overrides.Provider, "provider", "p", "", "provider to use for this run (openai, ollama, openwebui)")

	root.AddCommand(
		&cobra.Command{
			Use:   "commit",
			Short: "Stage files, draft a message and commit (default)",
			Args:  cobra.NoArgs,
			RunE:  a.runCommit,
		},
		&cobra.Command{
			Use:   "models",
			Short: "List the models offered by the configured provider",
			Args:  cobra.NoArgs,
			RunE:  a.runModels,
		},
		newConfigCmd(a),
		newAuthCmd(a),
	)
	return root
}

// load resolves configuration and builds the logger.
func (a *app) load() (*config.Config, error) {
	cfg, err := config.Load(a.overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(logging.Options{Verbose: a.verbose, File: cfg.LogPath()})
	if err != nil {
		return nil, err
	}
	a.logger = logger
	a.logger.Debug("configuration loaded",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.String("tracker", cfg.Tracker),
		zap.String("path", cfg.Path))
	return cfg, nil
}

func (a *app) provider(cfg *config.Config) (provider.Provider, error) {
	pc := cfg.ProviderConfig()
	pc.Logger = a.logger
	p, err := newProvider(pc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI provider: %w", err)
	}
	return p, nil
}

// tracker returns the configured issue tracker and its display name. A nil
// tracker disables the bug prompt.
func (a *app) tracker(cfg *config.Config, prompter *terminal.Prompter) (tracker.Tracker, string) {
	switch cfg.Tracker {
	case "github":
		if cfg.GitHubRepo == "" {
			a.printer.Warnf("GitHub tracker selected but githubRepo is not set; skipping issue context.")
			return nil, ""
		}
		gh, err := tracker.NewGitHub(cfg.GitHubRepo, cfg.GitHubToken, nil, a.logger)
		if err != nil {
			a.printer.Warnf("%v", err)
			return nil, ""
		}
		return gh, "GitHub"
	default:
		client := oauth.NewClient(&oauth.Store{Path: cfg.CredentialsPath()}, prompter, a.logger)
		return tracker.NewLaunchpad(client, a.logger), "Launchpad"
	}
}

func (a *app) runCommit(cmd *cobra.Command, _ []string) error {
	if !stdinIsTerminal() {
		return errors.New("evergit commit needs an interactive terminal")
	}
	cfg, err := a.load()
	if err != nil {
		return err
	}
	p, err := a.provider(cfg)
	if err != nil {
		return err
	}
	dir, err := workDir()
	if err != nil {
		return err
	}

	prompter := terminal.NewPrompter(a.in, a.out, a.printer)
	trk, label := a.tracker(cfg, prompter)
	exec := executor.New(p, git.NewCLI(dir, newRunner(), a.logger), prompter, a.printer, executor.Options{
		Model:        cfg.Model,
		Tracker:      trk,
		TrackerLabel: label,
		Name:         cfg.Name,
		Email:        cfg.Email,
		Logger:       a.logger,
	})
	return exec.Commit(cmd.Context())
}

func (a *app) runModels(cmd *cobra.Command, _ []string) error {
	cfg, err := a.load()
	if err != nil {
		return err
	}
	p, err := a.provider(cfg)
	if err != nil {
		return err
	}
	names, err := p.ListModels(cmd.Context())
	if err != nil {
		return err
	}
	a.printer.Infof("Available models (%s, current: %s):", cfg.Provider, cfg.Model)
	a.printer.Content(provider.FormatModelList(names))
	return nil
}

func newConfigCmd(a *app) *cobra.Command {
	store := func() (*config.Store, error) {
		path, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		return &config.Store{Path: path}, nil
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write ~/.evergitconfig",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a configuration value",
			Args:  cobra.ExactArgs(2),
			RunE: func(_ *cobra.Command, args []string) error {
				s, err := store()
				if err != nil {
					return err
				}
				if err := s.Set(args[0], args[1]); err != nil {
					return err
				}
				a.printer.Successf("%s updated.", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print a configuration value",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				s, err := store()
				if err != nil {
					return err
				}
				value, ok, err := s.Get(args[0])
				if err != nil {
					return err
				}
				if !ok {
					a.printer.Infof("%s is not set.", args[0])
					return nil
				}
				a.printer.Content(value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear <key>",
			Short: "Remove a configuration value",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				s, err := store()
				if err != nil {
					return err
				}
				if err := s.Clear(args[0]); err != nil {
					return err
				}
				a.printer.Successf("%s cleared.", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print every configuration value",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				s, err := store()
				if err != nil {
					return err
				}
				values, err := s.All()
				if err != nil {
					return err
				}
				if len(values) == 0 {
					a.printer.Infof("No configuration values set.")
					return nil
				}
				for _, k := range config.SortedKeys(values) {
					a.printer.Content(k + "=" + values[k])
				}
				return nil
			},
		},
	)
	return cmd
}

func newAuthCmd(a *app) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize evergit to read Launchpad bugs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			client := oauth.NewClient(&oauth.Store{Path: cfg.CredentialsPath()}, terminal.NewPrompter(a.in, a.out, a.printer), a.logger)
			if reset {
				if err := client.Reset(); err != nil {
					return err
				}
				a.printer.Infof("Stored Launchpad credentials removed.")
			}
			if _, err := client.Authorize(cmd.Context()); err != nil {
				return err
			}
			a.printer.Successf("Launchpad credentials stored in %s", cfg.CredentialsPath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "discard stored credentials and authorize again")
	return cmd
}
