package main

import (
	"fmt"
	"os"

	"github.com/jjurach/pigeon/internal/config"
	"github.com/jjurach/pigeon/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pigeon",
	Short: "Pigeon inbox carrier",
	Long:  `Pigeon watches Google Drive folders and chat channels, carries new items through the processing pipeline, and routes the resulting specs to their projects.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pigeon/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("poll.interval", config.DefaultPollInterval, "poll interval (e.g. 30s, 5m)")
	rootCmd.PersistentFlags().String("inbox.dir", config.DefaultInboxDir, "inbox directory for downloaded items")
}
