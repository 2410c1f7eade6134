// Package cmd assembles the campusguard command tree.
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusguard/edge-collector/cmd/config"
	"github.com/campusguard/edge-collector/cmd/serve"
	"github.com/campusguard/edge-collector/internal/conf"
	"github.com/campusguard/edge-collector/internal/errors"
	"github.com/campusguard/edge-collector/internal/logger"
)

// Options are the persistent flags shared by every subcommand.
type Options struct {
	ConfigPath string
	LogLevel   string
}

// RootCommand returns the campusguard root command. Running it without a
// subcommand starts the server.
func RootCommand() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "campusguard",
		Short: "CampusGuard edge alert collector",
		Long: `Collects security alerts from CampusGuard edge devices, keeps the most
recent ones in memory with their images on disk, and serves them to
dashboards over HTTP.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override main.loglevel (debug, info, warn, error)")

	serveCmd := serve.Command(opts.load)
	rootCmd.RunE = serveCmd.RunE
	rootCmd.AddCommand(serveCmd, config.Command(opts.loadSettings))

	return rootCmd
}

// loadSettings reads settings and applies flag overrides.
func (o *Options) loadSettings() (*conf.Settings, error) {
	settings, err := conf.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		settings.Main.LogLevel = o.LogLevel
	}
	return settings, nil
}

// load returns settings and a logger built from them.
func (o *Options) load() (*conf.Settings, logger.Logger, error) {
	settings, err := o.loadSettings()
	if err != nil {
		return nil, nil, err
	}

	level, err := logger.ParseLevel(settings.Main.LogLevel)
	if err != nil {
		return nil, nil, errors.New(err).
			Component("cmd").
			Category(errors.CategoryConfiguration).
			Context("setting", "main.loglevel").
			Build()
	}

	var tz *time.Location
	if settings.Main.Timezone != "" {
		tz, err = time.LoadLocation(settings.Main.Timezone)
		if err != nil {
			return nil, nil, errors.New(err).
				Component("cmd").
				Category(errors.CategoryConfiguration).
				Context("setting", "main.timezone").
				Build()
		}
	}

	return settings, logger.NewSlogLogger(os.Stdout, level, tz), nil
}
