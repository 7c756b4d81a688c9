// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

// Package app provides the command-line interface for the gatehouse server.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvidae/gatehouse/pkg/config"
	"github.com/corvidae/gatehouse/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "gatehouse",
	DisableAutoGenTag: true,
	Short:             "OAuth2/OIDC/UMA authentication server",
	Long: `Gatehouse is an authorization server front door: it authenticates
incoming requests (client credentials, JWT assertions, pre-issued access
tokens, sessions) and drives script-governed multi-step login workflows.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates the root command for the gatehouse CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			configPath := viper.GetString("config")
			if configPath == "" {
				return fmt.Errorf("no configuration file specified, use --config flag")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("configuration loading failed: %w", err)
			}

			logger.Infof("Configuration is valid")
			logger.Infof("  Listen: %s", cfg.ListenAddr())
			logger.Infof("  Realm: %s", cfg.Server.Realm)
			logger.Infof("  Session store: %s", cfg.Session.Store)
			logger.Infof("  Scripts enabled: %t", cfg.ScriptsEnabled())
			logger.Infof("  Clients: %d, users: %d", len(cfg.Clients), len(cfg.Users))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			logger.Infof("gatehouse version: %s", getVersion())
		},
	}
}

// getVersion returns the version string (set at build time via ldflags).
func getVersion() string {
	return version
}

var version = "dev"
