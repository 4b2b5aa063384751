package cmds

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/localmind/pkg/backend"
)

func NewModelsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage the models installed on the backend",
	}
	cmd.AddCommand(
		newModelsListCommand(app),
		newModelsActiveCommand(app),
		newModelActionCommand(app, "use <name>", "Make a model the active one", "active model is now %s\n",
			(*backend.Client).SetActiveModel),
		newModelActionCommand(app, "pull <name>", "Download a model in the background", "pulling %s\n",
			(*backend.Client).PullModel),
		newModelActionCommand(app, "delete <name>", "Remove an installed model", "deleted %s\n",
			(*backend.Client).DeleteModel),
	)
	return cmd
}

func newModelsListCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			ml, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if handled, err := writeStructured(w, output, ml); handled {
				return err
			}
			return writeTable(w, []string{"", "NAME", "SIZE", "MODIFIED"}, modelRows(ml))
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func modelRows(ml *backend.ModelList) [][]string {
	rows := make([][]string, 0, len(ml.Models))
	for _, m := range ml.Models {
		marker := ""
		if m.Name == ml.ActiveModel {
			marker = "*"
		}
		size := "-"
		if m.Size > 0 {
			size = humanize.Bytes(uint64(m.Size))
		}
		modified := m.ModifiedAt
		if ts, err := time.Parse(time.RFC3339Nano, m.ModifiedAt); err == nil {
			modified = humanize.Time(ts)
		}
		rows = append(rows, []string{marker, m.Name, size, modified})
	}
	return rows
}

func newModelsActiveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Print the active model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			name, err := client.ActiveModel(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), name)
			return err
		},
	}
}

func newModelActionCommand(
	app *App,
	use, short, done string,
	action func(*backend.Client, context.Context, string) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			if err := action(client, cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), done, args[0])
			return err
		},
	}
}
