package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hybrid-rag/backend/pkg/config"
	appLogger "github.com/hybrid-rag/backend/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logLevel string

	var root = &cobra.Command{
		Use:           "ragctl",
		Short:         "Offline tooling for the hybrid RAG service",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Logs go to stderr so reports on stdout stay pipeable.
			return appLogger.Init(logLevel, "console", "stderr")
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (defaults to ./config.yaml and HYBRID_RAG_* env)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	loadConfig := func() (*config.Config, error) {
		if configPath != "" {
			return config.LoadFile(configPath)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(evaluateCMD(loadConfig), indexCMD(loadConfig))
	return root
}
