// Package config implements "campusguard config".
package config

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/campusguard/edge-collector/internal/conf"
)

// Command prints the effective settings as YAML with secrets masked.
func Command(load func() (*conf.Settings, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := load()
			if err != nil {
				return err
			}
			redacted := settings.Redacted()

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(&redacted); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
