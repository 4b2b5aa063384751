package cmds

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/localmind/pkg/backend"
)

func NewSessionsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and create chat sessions",
	}
	cmd.AddCommand(newSessionsListCommand(app), newSessionsNewCommand(app))
	return cmd
}

func newSessionsListCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			sessions, err := client.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if handled, err := writeStructured(w, output, sessions); handled {
				return err
			}
			return writeTable(w, []string{"ID", "TITLE", "CREATED"}, sessionRows(sessions))
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func sessionRows(sessions []backend.Session) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		created := "-"
		if s.CreatedAt > 0 {
			created = humanize.Time(s.Created())
		}
		rows = append(rows, []string{s.ID, s.DisplayTitle(), created})
	}
	return rows
}

func newSessionsNewCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			s, err := client.CreateSession(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if handled, err := writeStructured(w, output, s); handled {
				return err
			}
			_, err = fmt.Fprintln(w, s.ID)
			return err
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}
