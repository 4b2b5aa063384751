package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/localmind/cmd/localmind/cmds"
)

func newRootCommand(app *cmds.App) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:          "localmind",
		Short:        "localmind is a client for a locally hosted LLM chat backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// reinitialize the logger now that --log-level and co are parsed
			return app.Init(cmd)
		},
	}
	if err := app.AddPersistentFlags(rootCmd); err != nil {
		return nil, err
	}

	rootCmd.AddCommand(
		cmds.NewChatCommand(app),
		cmds.NewAskCommand(app),
		cmds.NewSessionsCommand(app),
		cmds.NewHistoryCommand(app),
		cmds.NewModelsCommand(app),
		cmds.NewStatusCommand(app),
		cmds.NewConfigCommand(app),
		cmds.NewKnowledgeCommand(app),
	)
	return rootCmd, nil
}

// run executes the command line. Shutdown runs on every path, since cobra skips the post-run
// hooks when a command fails.
func run(ctx context.Context, app *cmds.App, args []string) error {
	defer app.Shutdown()
	rootCmd, err := newRootCommand(app)
	if err != nil {
		return err
	}
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cmds.NewApp(), os.Args[1:])
	stop()
	cobra.CheckErr(err)
}
