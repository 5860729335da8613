// Package config implements the config command.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/seamless-recorder/internal/conf"
)

// Command creates the config command
func Command(settings *conf.Settings) *cobra.Command {
	var writePath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the effective configuration as YAML, including flag and environment overrides.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if writePath != "" {
				if err := conf.SaveYAMLConfig(writePath, settings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved configuration to %s\n", writePath)
				return nil
			}

			data, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("error marshaling settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&writePath, "write", "", "Save the effective configuration to this path")
	return cmd
}
