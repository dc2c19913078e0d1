package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wms-platform/production-tracking/internal/application"
	"github.com/wms-platform/production-tracking/internal/tui"
)

func newDisplayCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Inspect and configure display sessions",
	}

	cmd.AddCommand(
		newDisplayShowCmd(app),
		newDisplayConfigureCmd(app),
	)

	return cmd
}

func newDisplayShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session>",
		Short: "Show a display session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.Client().Display(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printDisplay(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func newDisplayConfigureCmd(app *App) *cobra.Command {
	var filters filterList
	var intervalSeconds int
	var paused bool
	var updatedBy string

	cmd := &cobra.Command{
		Use:   "configure <session>",
		Short: "Set a display's filters, interval and rotation",
		Long: "Opens a form when run in a terminal and no flags are given.\n" +
			"Otherwise --filter and --interval are required.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sessionID := args[0]
			c := app.Client()

			var command application.ConfigureDisplayCommand
			flagged := cmd.Flags().Changed("filter") || cmd.Flags().Changed("interval")

			switch {
			case flagged:
				if len(filters.values) == 0 || intervalSeconds <= 0 {
					return fmt.Errorf("--filter and --interval are both required")
				}
				rotating := !paused
				command = application.ConfigureDisplayCommand{
					SessionID:       sessionID,
					Filters:         filters.GetSlice(),
					IntervalSeconds: intervalSeconds,
					RotationEnabled: &rotating,
					UpdatedBy:       updatedBy,
				}

			case app.interactive():
				pipeline, err := c.Pipeline(ctx)
				if err != nil {
					return fmt.Errorf("loading pipeline: %w", err)
				}
				current, err := c.Display(ctx, sessionID)
				if err != nil {
					return fmt.Errorf("loading display %s: %w", sessionID, err)
				}
				values := tui.ValuesFromSession(&current.DisplaySession)
				values.UpdatedBy = updatedBy
				if err := tui.NewDisplayForm(pipeline, values).RunWithContext(ctx); err != nil {
					return err
				}
				command, err = values.Command(pipeline, sessionID)
				if err != nil {
					return err
				}

			default:
				return fmt.Errorf("no terminal: pass --filter and --interval")
			}

			d, err := c.ConfigureDisplay(ctx, command)
			if err != nil {
				return err
			}
			printDisplay(cmd.OutOrStdout(), d)
			return nil
		},
	}

	addFilterFlag(cmd.Flags(), &filters, "Filters in rotation order")
	cmd.Flags().IntVar(&intervalSeconds, "interval", 0, "Rotation interval in seconds")
	cmd.Flags().BoolVar(&paused, "paused", false, "Save the display with rotation paused")
	cmd.Flags().StringVar(&updatedBy, "by", "", "Name recorded on the change")

	return cmd
}

func printDisplay(w io.Writer, d *application.DisplaySessionDTO) {
	state := "rotating"
	if !d.RotationEnabled {
		state = "paused"
	}
	saved := "saved"
	if !d.Persisted {
		saved = "defaults, not saved yet"
	}
	fmt.Fprintf(w, "%s  (%s)\n", tui.StyleHeader.Render(d.SessionID), saved)
	fmt.Fprintf(w, "  filters   %s\n", strings.Join(d.Filters, ", "))
	fmt.Fprintf(w, "  interval  %ss, %s\n", strconv.Itoa(d.IntervalSeconds), state)
	if d.UpdatedBy != "" {
		fmt.Fprintf(w, "  updated   %s by %s\n", d.UpdatedAt.Format("2006-01-02 15:04"), d.UpdatedBy)
	}
}
