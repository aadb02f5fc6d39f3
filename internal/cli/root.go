// Package cli wires the accounts components into the `accounts` command.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/weavefeed/accounts/internal/auth"
	"github.com/weavefeed/accounts/internal/cache"
	"github.com/weavefeed/accounts/internal/config"
	"github.com/weavefeed/accounts/internal/database"
	"github.com/weavefeed/accounts/internal/logging"
)

// Options configures the root command. Zero values fall back to the process
// streams and environment.
type Options struct {
	Version     string
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	Environment map[string]string
	Hasher      auth.Hasher
}

type app struct {
	opts Options

	configFile string
	logLevel   string
	timeout    time.Duration

	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the accounts command with os.Args.
func Execute(ctx context.Context, opts Options) error {
	return NewRootCommand(opts).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Hasher == nil {
		opts.Hasher = auth.DefaultHasher()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	a := &app{opts: opts}

	root := &cobra.Command{
		Use:     "accounts",
		Short:   "WeaveFeed accounts store administration",
		Long:    `accounts prepares and administers the WeaveFeed accounts database: it bootstraps the schema and administrator, runs migrations and manages users.`,
		Version: opts.Version,
		Example: `accounts bootstrap
  accounts -c accounts.yaml migrate status
  accounts user create --username alice --email alice@example.com`,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to config file (overrides WEAVEFEED_ACCOUNTS_CONFIG_FILE)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error) - overrides config setting")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "Deadline for the whole command")

	root.AddCommand(
		a.bootstrapCommand(),
		a.migrateCommand(),
		a.userCommand(),
		a.healthCommand(),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile:  a.configFile,
		Environment: a.opts.Environment,
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	a.cfg = cfg
	a.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format, a.opts.Stderr)
	return nil
}

// context applies the --timeout deadline to the command context.
func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *app) openDB(ctx context.Context) (*database.DB, error) {
	db, err := database.Open(ctx, a.cfg.Database)
	if err != nil {
		err = logging.RedactError(err, a.cfg.Database.DSN(), a.cfg.Database.Password)
		a.logger.Error("failed to connect to database",
			slog.String("error", err.Error()),
			slog.Any("database", a.cfg.Database),
		)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.logger.Debug("connected to database", slog.Any("database", a.cfg.Database))
	return db, nil
}

// openCache connects to Redis when configured. Failures are logged and
// yield nil, which disables throttling.
func (a *app) openCache(ctx context.Context) *cache.Cache {
	if a.cfg.Redis.URL == "" {
		return nil
	}
	c, err := cache.New(ctx, a.cfg.Redis.URL)
	if err != nil {
		a.logger.Warn("redis unavailable, login throttling disabled",
			slog.String("error", logging.SanitizeError(err, a.cfg.Redis.URL)),
			slog.String("redis_url", logging.RedactURL(a.cfg.Redis.URL)),
		)
		return nil
	}
	return c
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.opts.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
