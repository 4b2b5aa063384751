package cmds

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/localmind/pkg/backend"
)

type StatusReport struct {
	Backend     string `json:"backend" yaml:"backend"`
	Service     string `json:"service" yaml:"service"`
	Status      string `json:"status" yaml:"status"`
	ActiveModel string `json:"active_model" yaml:"active_model"`
	Sessions    int    `json:"sessions" yaml:"sessions"`
	StreamURL   string `json:"stream_url" yaml:"stream_url"`
}

// collectStatus runs the probes concurrently. The first failure cancels the rest.
func collectStatus(ctx context.Context, client *backend.Client, session string) (*StatusReport, error) {
	report := &StatusReport{Backend: client.BaseURL()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := client.Health(ctx)
		if err != nil {
			return err
		}
		report.Service, report.Status = h.Service, h.Status
		return nil
	})
	g.Go(func() error {
		name, err := client.ActiveModel(ctx)
		if err != nil {
			return err
		}
		report.ActiveModel = name
		return nil
	})
	g.Go(func() error {
		sessions, err := client.ListSessions(ctx)
		if err != nil {
			return err
		}
		report.Sessions = len(sessions)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	u, err := client.StreamURL(session)
	if err != nil {
		return nil, err
	}
	report.StreamURL = u
	return report, nil
}

func NewStatusCommand(app *App) *cobra.Command {
	var (
		output  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			session, err := app.sessionOrDefault("")
			if err != nil {
				return err
			}
			start := time.Now()
			report, err := collectStatus(ctx, client, session)
			if err != nil {
				return err
			}
			log.Debug().Dur("elapsed", time.Since(start)).Msg("status collected")

			w := cmd.OutOrStdout()
			if handled, err := writeStructured(w, output, report); handled {
				return err
			}
			_, err = fmt.Fprintf(w,
				"backend:      %s (%s, %s)\nactive model: %s\nsessions:     %d\nstream:       %s\n",
				report.Backend, report.Service, report.Status, report.ActiveModel, report.Sessions, report.StreamURL)
			return err
		},
	}
	addOutputFlag(cmd, &output)
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Overall deadline for the probes")
	return cmd
}
