package cmds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/localmind/pkg/backend"
)

func NewKnowledgeCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Search or extend the backend's knowledge base",
	}
	cmd.AddCommand(newKnowledgeSearchCommand(app), newKnowledgeAddCommand(app))
	return cmd
}

func newKnowledgeSearchCommand(app *App) *cobra.Command {
	var (
		output string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List the stored facts closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			results, err := client.SearchKnowledge(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if handled, err := writeStructured(w, output, results); handled {
				return err
			}
			if len(results) == 0 {
				_, err = fmt.Fprintln(w, "no matching facts")
				return err
			}
			return writeTable(w, []string{"#", "FACT"}, knowledgeRows(results))
		},
	}
	addOutputFlag(cmd, &output)
	cmd.Flags().IntVarP(&limit, "limit", "n", backend.DefaultSearchLimit, "Maximum number of facts to return")
	return cmd
}

func knowledgeRows(results []string) [][]string {
	rows := make([][]string, 0, len(results))
	for i, r := range results {
		rows = append(rows, []string{strconv.Itoa(i + 1), r})
	}
	return rows
}

func newKnowledgeAddCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Store a fact in the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			if err := client.AddKnowledge(cmd.Context(), strings.Join(args, " ")); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "fact added")
			return err
		},
	}
}
