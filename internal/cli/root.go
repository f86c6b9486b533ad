package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/Tandem/internal/monitor"
	"github.com/turtacn/Tandem/internal/orchestrator"
	"github.com/turtacn/Tandem/pkg/consts"
	"github.com/turtacn/Tandem/pkg/errors"
	"github.com/turtacn/Tandem/pkg/logger"
)

var (
	cfgFile  string
	logLevel string

	// exitCode carries the harness result out of cobra's RunE.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:           "tandem",
	Short:         "Tandem: run a server and a client together and report both",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runHarness,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the server, then the client, wait on both and exit with the combined code",
	Args:  cobra.NoArgs,
	RunE:  runHarness,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

func runHarness(cmd *cobra.Command, args []string) error {
	// 1. Load Config
	cfg, err := loadConfig(cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	// 2. Init Logger & Metrics
	level := cfg.Observability.LogLevel
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	logger.InitLogger(level)
	if cfg.Observability.MetricsAddr != "" {
		monitor.InitMetrics(cfg.Observability.MetricsAddr)
	}

	// 3. Run the pair
	engine := orchestrator.NewEngine(cfg, cmd.OutOrStdout())
	logger.Log.Info("Booting Tandem harness...", "run_id", engine.RunID(), "server", cfg.Server.Path, "client", cfg.Client.Path)
	exitCode = engine.Run(context.Background())
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", consts.DefaultConfigFile, "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	exitCode = consts.ExitOK
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.CodeOf(err) == errors.ErrCodeUnknown {
			// cobra usage errors
			return consts.ExitConfigInvalid
		}
		return errors.ExitCode(err)
	}
	return exitCode
}

// Personal.AI order the ending
