// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/sigil-dev/docquery/internal/config"
	"github.com/sigil-dev/docquery/internal/secrets"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// logOutput is where the CLI's slog handler writes.
var logOutput io.Writer = os.Stderr

// NewRootCmd creates the root docquery command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docquery",
		Short:         "Upload documents and ask questions about them",
		Long:          "docquery indexes uploaded .txt and .docx documents and answers questions over them through an HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newConfigCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(verbose)

	// Variables already in the environment win over the dotenv file.
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return dqerr.Errorf(dqerr.CodeCLISetupFailure, "loading %s: %w", envFile, err)
		}
	}

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return dqerr.Errorf(dqerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		v.SetConfigName("docquery")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/docquery")
		// No config file is fine; defaults and env vars still apply.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return dqerr.Errorf(dqerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("using config file", "path", used)
		config.WarnInsecurePermissions(used)
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return dqerr.Errorf(dqerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	if n := secrets.ResolveViper(v, secretStoreFactory()); n > 0 {
		slog.Debug("resolved keyring references", "count", n)
	}

	return nil
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level})))
}
