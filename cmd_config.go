package main

import (
	"errors"
	"fmt"
	"os"

	"bscwallet/pkg/config"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config path",
		Long:  "Writes defaults merged with the current file and environment. Private keys are never written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite; a backup is kept)", cfgPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.SaveConfig(cfg, cfgPath); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", cfgPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the most recent backup of the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RestoreLastBackup(cfgPath); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "Restored last backup of %s\n", cfgPath)
			return nil
		},
	}

	cmd.AddCommand(initCmd, restoreCmd)
	return cmd
}
