package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kpianalyzer/internal/config"
	"kpianalyzer/internal/infrastructure"
	"kpianalyzer/pkg/contracts"
)

// cliEnv is the state shared by subcommands once the root has loaded it.
type cliEnv struct {
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	env := &cliEnv{}

	root := &cobra.Command{
		Use:   "kpianalyzer",
		Short: "Reshape telecom KPI workbooks and remark every entity",
		Long: `kpianalyzer reads BBH and daily KPI workbooks, reshapes them into one
row per entity, segment and KPI with a column per date, and writes a remark
for every row from the configured thresholds and the RNA KPI.`,
		SilenceUsage:      true,
		PersistentPreRunE: env.load,
	}

	root.PersistentFlags().StringVar(&env.cfgFile, "config", "", "analysis config file (default: $KPI_CONFIG_FILE or "+config.DefaultConfigFile+")")
	root.PersistentFlags().StringVar(&env.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(analyzeCmd(env))
	root.AddCommand(inspectCmd(env))
	root.AddCommand(versionCmd())
	return root
}

// load reads the configuration and builds a logger on stderr.
func (e *cliEnv) load(cmd *cobra.Command, _ []string) error {
	var err error
	if e.cfgFile != "" {
		e.cfg, err = config.LoadFile(e.cfgFile)
	} else {
		e.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := e.cfg.Logging.Level
	if e.logLevel != "" {
		level = e.logLevel
	}
	e.logger = infrastructure.NewLogger(cmd.ErrOrStderr(), level)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// The version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", config.AppName, contracts.GetVersionInfo())
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
