// Command posfit scores football players for every outfield position and
// serves the stored results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/okian/posfit/internal/config"
	"github.com/okian/posfit/pkg/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "posfit",
		Short: "Football position-fit scoring",
		Long: `posfit rates how well each player fits the nine outfield positions.
Fit compares a player's attributes to per-position reference statistics,
REL rescales fit within the player, and combo blends the two to pick the
best position.

Configuration is layered: defaults, then the YAML file named by --config
or POSFIT_CONFIG, then POSFIT_* environment variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "YAML config file (overrides "+config.EnvConfigPath+")")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	root.AddCommand(
		newScoreCmd(c),
		newServeCmd(c),
		newMigrateCmd(c),
		newReferenceCmd(c),
		newLoadTestCmd(c),
	)
	return root
}

// setup loads configuration and initializes logging before any subcommand runs.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	path := c.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	c.cfg = cfg
	return nil
}

// Output formats shared by the reporting subcommands.
const (
	formatTable = "table"
	formatJSON  = "json"
)

func addFormatFlag(fs *pflag.FlagSet, target *string) {
	fs.StringVar(target, "format", formatTable, "Output format: table or json")
}

func checkFormat(format string) error {
	if format != formatTable && format != formatJSON {
		return fmt.Errorf("unsupported format %q", format)
	}
	return nil
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
