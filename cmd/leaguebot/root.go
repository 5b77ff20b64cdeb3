package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/predictionleague/internal/app"
	"github.com/alanyoungcy/predictionleague/internal/config"
)

// cli carries state shared by every command.
type cli struct {
	configPath string
	out        io.Writer
	logOut     io.Writer
	logger     *slog.Logger
	cfg        *config.Config
	app        *app.App
}

func newCLI(out, logOut io.Writer) *cli {
	return &cli{
		out:    out,
		logOut: logOut,
		logger: newLogger(logOut, "info"),
	}
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "leaguebot",
		Short:         "Prediction league ledger operator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "config.toml", "path to configuration file (empty for defaults and environment only)")

	root.AddCommand(
		c.leagueCmd(),
		c.predictCmd(),
		c.outcomeCmd(),
		c.scoreCmd(),
		c.resolveCmd(),
		c.marketsCmd(),
		c.eventsCmd(),
		c.reportsCmd(),
	)
	return root
}

// setup loads and validates configuration and prepares the application. The
// dependencies themselves are wired lazily by the first command that needs
// them.
func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", c.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = newLogger(c.logOut, cfg.LogLevel)
	slog.SetDefault(c.logger)

	redacted := config.RedactedConfig(cfg)
	c.logger.DebugContext(ctx, "configuration loaded",
		slog.String("config", c.configPath),
		slog.String("store", redacted.Store.Driver),
		slog.String("postgres_dsn", redacted.Postgres.DSN),
		slog.String("gamma", redacted.Gamma.Host),
	)

	c.app = app.New(cfg, c.logger)
	return nil
}

func (c *cli) deps(ctx context.Context) (*app.Dependencies, error) {
	if c.app == nil {
		return nil, fmt.Errorf("leaguebot: not configured")
	}
	return c.app.Open(ctx)
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
	}
}

// newLogger builds the JSON logger at the named level.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
