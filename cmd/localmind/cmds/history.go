package cmds

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/localmind/pkg/chatclient"
)

func NewHistoryCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the stored history of a session",
	}
	cmd.AddCommand(newHistoryShowCommand(app), newHistoryClearCommand(app))
	return cmd
}

func newHistoryShowCommand(app *App) *cobra.Command {
	var (
		output string
		memory bool
	)
	cmd := &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print the history of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			id, err = app.sessionOrDefault(id)
			if err != nil {
				return err
			}
			fetch := client.History
			if memory {
				fetch = client.Memory
			}
			turns, err := fetch(cmd.Context(), id)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if handled, err := writeStructured(w, output, turns); handled {
				return err
			}
			for _, t := range turns {
				if _, err := fmt.Fprintf(w, "%s: %s\n", roleLabel(t.Role), t.Content); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addOutputFlag(cmd, &output)
	cmd.Flags().BoolVar(&memory, "memory", false, "Read the conversational memory the backend feeds the model instead of the session log")
	return cmd
}

func roleLabel(r chatclient.Role) string {
	if r == chatclient.RoleUser {
		return "you"
	}
	return string(r)
}

func newHistoryClearCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Drop the stored history of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			if err := client.ClearHistory(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleared history of %s\n", args[0])
			return err
		},
	}
}
