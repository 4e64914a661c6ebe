package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jgoulah/energytracker/internal/config"
	"github.com/jgoulah/energytracker/internal/ctxlog"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// appConfig is loaded once per run, before any subcommand runs
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "energytracker",
	Short: "Summarize household appliance energy usage from a CSV file",
	Long: `EnergyTracker reads a CSV of appliance usage records (device_type, power_watt, status),
adds up the power of devices that are on, and estimates monthly kWh and cost per device type.
Results are shown as tables and a bar chart, either in the terminal or through an upload page.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config, else info)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// saveRate stores rate as the default in the configuration file
func saveRate(rate float64) error {
	if err := config.SaveRate(getConfigPath(), rate); err != nil {
		return err
	}
	appConfig.Rate = &rate
	return nil
}

// setup loads the config and attaches a stderr logger to the command context
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	appConfig = cfg

	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}

	logger, err := ctxlog.New(os.Stderr, level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	return nil
}
