package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/mlwiz/config"
	"github.com/YuminosukeSato/mlwiz/pkg/log"
)

// flagKeys binds command-line flags to config keys. Flags only override the
// config file and environment when given explicitly.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"fail-fast": "automl.fail_fast",
	"parallel":  "automl.parallel",
	"addr":      "server.addr",
}

type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "mlwiz",
		Short: "Explore tabular data and find a baseline model",
		Long: `mlwiz loads a CSV, TSV or Excel file, summarises and plots it, and trains
baseline models for a target column, reporting which one scores best.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		a.previewCmd(),
		a.describeCmd(),
		a.correlationCmd(),
		a.plotCmd(),
		a.evaluateCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if err := log.SetupLogger(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		return err
	}
	if a.configPath != "" {
		log.GetLoggerWithName("cli").Debug("config loaded", log.ConfigFileKey, a.configPath)
	}
	return nil
}
