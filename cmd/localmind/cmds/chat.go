package cmds

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/localmind/pkg/logging"
	"github.com/go-go-golems/localmind/pkg/ui"
)

func NewChatCommand(app *App) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat for a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := app.Settings()
			if err != nil {
				return err
			}
			// the full-screen program owns the terminal; logs go to --log-file or nowhere
			if settings.Log.File == "" {
				logging.Discard()
			}
			sessionID, err := app.sessionOrDefault(session)
			if err != nil {
				return err
			}

			ctrl, _, err := app.NewController()
			if err != nil {
				return err
			}
			defer func() {
				if err := ctrl.Close(); err != nil {
					log.Warn().Err(err).Msg("close controller")
				}
			}()

			return ui.Run(cmd.Context(), ctrl, sessionID)
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "", "Session id (default chat.session)")
	return cmd
}
