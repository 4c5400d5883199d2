package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"bscwallet/pkg/config"
	"bscwallet/pkg/errs"
	"bscwallet/pkg/logger"
	"bscwallet/pkg/tui"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version should be set during build
var Version = "dev"

var (
	configFlag   string
	logLevelFlag string
	logFileFlag  string

	// set by the root PersistentPreRunE
	cfg     config.Config
	cfgPath string
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	dimColor  = color.New(color.Faint)
	boldColor = color.New(color.Bold)
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		errColor.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.ErrorCF("main", "Command failed", map[string]any{"error": err.Error()})
		logger.Close()
		os.Exit(exitCode(err))
	}
	logger.Close()
}

// exitCode is 2 when a distribution finished with failed transfers, 1 for any other error.
func exitCode(err error) int {
	if errors.Is(err, errs.ErrTransferFailure) {
		return 2
	}
	return 1
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bscwallet",
		Short:         "BNB Smart Chain wallet utility",
		Long:          "bscwallet checks native and stablecoin balances, generates key pairs and distributes a fixed native amount to a list of wallets.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			path, err := config.GetConfigPath(configFlag)
			if err != nil {
				return fmt.Errorf("determining config path: %w", err)
			}
			loaded, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config from %s: %w", path, err)
			}
			if logLevelFlag != "" {
				loaded.Log.Level = logLevelFlag
			}
			if logFileFlag != "" {
				loaded.Log.File = logFileFlag
			}
			cfg, cfgPath = loaded, path
			return initLogging(cfg.Log, cmd.Parent() == nil)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if problems := cfg.Validate(); len(problems) > 0 {
				return fmt.Errorf("invalid configuration %s: %v", cfgPath, problems)
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a := newApp(ctx, cfg, defaultAppOptions())
			defer a.close()

			return tui.Start(tui.Deps{
				Config:      cfg,
				Client:      a.client,
				Bus:         a.bus,
				Tasks:       a.tasks,
				Watcher:     a.watcher,
				Generator:   a.gen,
				Distributor: a.dist,
			}, Version)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to configuration file (.json, .yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(
		newVersionCmd(),
		newBalancesCmd(),
		newGenerateCmd(),
		newSupplyCmd(),
		newServeCmd(),
		newCheckConfigCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bscwallet version %s\n", Version)
		},
	}
}
