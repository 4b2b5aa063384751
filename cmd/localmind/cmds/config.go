package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigShowCommand(app), newConfigPathCommand(app))
	return cmd
}

func newConfigShowCommand(app *App) *cobra.Command {
	output := outputYAML
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the merged settings (defaults, config file, environment, flags)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == outputTable {
				output = outputYAML
			}
			settings, err := app.Settings()
			if err != nil {
				return err
			}
			_, err = writeStructured(cmd.OutOrStdout(), output, settings)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputYAML, "Output format (yaml, json)")
	return cmd
}

func newConfigPathCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			used := app.v.ConfigFileUsed()
			if used == "" {
				used = "(none)"
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), used)
			return err
		},
	}
}
