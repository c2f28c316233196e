// Package cmd is the amer command line.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Andrandra1na/AMER-SMA/config"
)

var (
	configPath string
	logLevel   string

	conf *config.Root
	log  *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "amer",
	Short:         "Interview session analysis pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Pipeline.LogLvl = logLevel
		}
		l, err := newLogger(c)
		if err != nil {
			return err
		}
		conf, log = c, l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override pipeline.log_level")
	rootCmd.AddCommand(analyzeCmd, serveCmd, profilesCmd, knowledgeCmd, migrateCmd)
}

func newLogger(c *config.Root) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(c.Pipeline.LogLvl)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	l.SetLevel(lvl)
	switch strings.ToLower(c.Pipeline.LogFormat) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.WithError(err).Error("command failed")
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
