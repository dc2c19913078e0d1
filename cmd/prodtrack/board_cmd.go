package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wms-platform/production-tracking/internal/projection"
	"github.com/wms-platform/production-tracking/internal/tui"
)

func newBoardCmd(app *App) *cobra.Command {
	var filter string
	var includeFinished, asJSON, dashboard bool

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Print the current board once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := app.Client()
			out := cmd.OutOrStdout()

			if dashboard {
				d, err := c.Dashboard(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, d)
				}
				printDashboard(out, d)
				return nil
			}

			frame, err := c.Frame(ctx, filter)
			if err != nil {
				return err
			}
			if includeFinished {
				board, err := c.Board(ctx, filter, true)
				if err != nil {
					return err
				}
				frame.Board = *board
			}
			if asJSON {
				return writeJSON(out, frame)
			}
			fmt.Fprintln(out, tui.NewRenderer().Frame(frame, 0))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "ALL", "ALL, STAGE:<name> or WAREHOUSE:<type>")
	cmd.Flags().BoolVar(&includeFinished, "finished", false, "Include recently finished items")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of the rendered board")
	cmd.Flags().BoolVar(&dashboard, "dashboard", false, "Print the production day KPIs instead")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDashboard(w io.Writer, d *projection.Dashboard) {
	fmt.Fprintln(w, tui.StyleHeader.Render("PRODUCTION DAY"))
	fmt.Fprintf(w, "%s to %s\n\n", d.Day.Start.Format("Jan 02 15:04"), d.Day.End.Format("Jan 02 15:04"))
	fmt.Fprintf(w, "Arrived quantity   %d\n", d.ArrivedQuantity)
	fmt.Fprintf(w, "Completed items    %d\n", d.CompletedItems)
	fmt.Fprintf(w, "Reworked items     %d\n", d.ReworkedItemsOfDay)
	fmt.Fprintf(w, "Late               %s\n", tui.StyleRed.Render(fmt.Sprint(d.LateCount)))
	fmt.Fprintf(w, "Warning            %s\n", tui.StyleYellow.Render(fmt.Sprint(d.WarningCount)))
	fmt.Fprintf(w, "Late requests      %d\n", d.LateRequestsCount)

	if len(d.FinishedQuantity) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, tui.StyleHeader.Render("Finished quantity by stage"))
		for _, stage := range sortedKeys(d.FinishedQuantity) {
			fmt.Fprintf(w, "  %-16s %d\n", stage, d.FinishedQuantity[stage])
		}
	}
	if len(d.PendingRequests) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, tui.StyleHeader.Render("Pending requests"))
		for _, t := range sortedKeys(d.PendingRequests) {
			fmt.Fprintf(w, "  %-16s %d\n", t, d.PendingRequests[t])
		}
	}
	if len(d.TopDelayed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, tui.StyleHeader.Render("Most delayed"))
		for _, e := range d.TopDelayed {
			if e.Item == nil {
				continue
			}
			fmt.Fprintf(w, "  %-18s %-12s %8s  %s\n", e.Item.ReferenceNumber, e.Item.Stage, tui.Remaining(e.Urgency), tui.LevelIndicator(e.Urgency.Level))
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
