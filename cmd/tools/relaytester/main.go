// Command relaytester exercises the relay's building blocks from a terminal:
// transcript normalization, failure classification, upstream probing and
// speech synthesis.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/mentor-relay/backend/internal/config"
	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "relaytester",
		Short:         "Manual checks for the mentor relay",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile == "" {
				return
			}
			if err := godotenv.Load(envFile); err != nil {
				logger.Log.Warnf("could not load %s, using process environment: %v", envFile, err)
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before reading configuration")

	root.AddCommand(
		newNormalizeCmd(),
		newClassifyCmd(),
		newProbeCmd(),
		newSpeakCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level)
	return cfg, nil
}
