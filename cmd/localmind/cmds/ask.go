package cmds

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/localmind/pkg/chatclient"
)

// replyPrinter streams the reply to the first user turn at or after index from. Fragments
// that land before that user turn belong to an earlier exchange and are ignored.
type replyPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	from    int
	printed int
	reply   string
}

func (p *replyPrinter) onState(s chatclient.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := replyTurn(s.Turns, p.from)
	if !ok {
		return
	}
	p.reply = t.Content
	if p.w != nil && len(t.Content) > p.printed {
		_, _ = io.WriteString(p.w, t.Content[p.printed:])
		p.printed = len(t.Content)
	}
}

// replyTurn returns the first assistant turn after the first user turn at or after from.
func replyTurn(turns []chatclient.Turn, from int) (chatclient.Turn, bool) {
	for i := from; i < len(turns); i++ {
		if turns[i].Role != chatclient.RoleUser {
			continue
		}
		for _, t := range turns[i+1:] {
			if t.Role == chatclient.RoleAssistant {
				return t, true
			}
		}
		break
	}
	return chatclient.Turn{}, false
}

func (p *replyPrinter) text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reply
}

func NewAskCommand(app *App) *cobra.Command {
	var (
		session string
		render  bool
	)
	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Send one message and print the streamed reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("empty message")
			}
			settings, err := app.Settings()
			if err != nil {
				return err
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

			if err := ctrl.Activate(ctx, sessionID); err != nil {
				return err
			}
			if ctrl.Connectivity() != chatclient.StatusConnected {
				return errors.Errorf("could not connect to session %s at %s", sessionID, settings.Backend.URL)
			}

			out := cmd.OutOrStdout()
			p := &replyPrinter{from: len(ctrl.Turns())}
			if !render {
				p.w = out
			}
			cancel := ctrl.Subscribe(p.onState)
			defer cancel()

			if !ctrl.Send(text) {
				return errors.New("connection dropped before the message was sent")
			}
			err = ctrl.WaitIdle(ctx, settings.Chat.IdleTimeout)
			if err != nil && !errors.Is(err, chatclient.ErrDisconnected) {
				return err
			}

			reply := p.text()
			if render && reply != "" {
				r, rerr := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
				if rerr != nil {
					return errors.Wrap(rerr, "create markdown renderer")
				}
				rendered, rerr := r.Render(reply)
				if rerr != nil {
					return errors.Wrap(rerr, "render reply")
				}
				_, _ = fmt.Fprint(out, rendered)
			} else {
				_, _ = fmt.Fprintln(out)
			}
			if err != nil {
				return errors.Wrap(err, "reply interrupted")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "", "Session id (default chat.session)")
	cmd.Flags().BoolVar(&render, "render", false, "Render the complete reply as markdown instead of streaming it")
	return cmd
}
