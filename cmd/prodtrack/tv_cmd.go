package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wms-platform/production-tracking/internal/rotation"
	"github.com/wms-platform/production-tracking/internal/tui"
)

func newTVCmd(app *App) *cobra.Command {
	var sessionID, operator string
	var filters filterList
	var intervalSeconds int

	cmd := &cobra.Command{
		Use:   "tv",
		Short: "Show the rotating shop floor board",
		Long: "Runs the rotating board for a display session. Filters and interval come from\n" +
			"the session unless overridden. Without a terminal every filter is printed once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := app.Client()
			session, err := c.Display(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("loading display %s: %w", sessionID, err)
			}

			settings := rotation.SettingsFromSession(&session.DisplaySession)
			if len(filters.values) > 0 {
				settings.Filters = filters.GetSlice()
			}
			if intervalSeconds > 0 {
				settings.Interval = time.Duration(intervalSeconds) * time.Second
			}

			if !app.interactive() {
				return printFrames(ctx, cmd.OutOrStdout(), c, settings.Filters)
			}

			driver, err := rotation.NewDriver(c, settings, app.Logger())
			if err != nil {
				return err
			}
			if err := driver.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = driver.Stop() }()

			var opts []tui.Option
			// overrides are local to this screen; only persisted sessions sync
			if len(filters.values) == 0 && intervalSeconds == 0 && session.Persisted {
				opts = append(opts, tui.WithRotationSync(func(ctx context.Context, enabled bool) error {
					_, err := c.SetRotation(ctx, sessionID, enabled, operator)
					return err
				}))
			}
			return tui.Run(ctx, driver, len(settings.Filters), opts...)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "default", "Display session ID")
	addFilterFlag(cmd.Flags(), &filters, "Override filters (ALL, STAGE:<name>, WAREHOUSE:<type>)")
	cmd.Flags().IntVar(&intervalSeconds, "interval", 0, "Override rotation interval in seconds")
	cmd.Flags().StringVar(&operator, "operator", "tv", "Name recorded when pausing or resuming")

	return cmd
}

func printFrames(ctx context.Context, w io.Writer, source rotation.FrameSource, filters []string) error {
	r := tui.NewRenderer()
	for _, f := range filters {
		frame, err := source.Frame(ctx, f)
		if err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
		fmt.Fprintln(w, r.Frame(frame, 0))
		fmt.Fprintln(w)
	}
	return nil
}
